// Package db is the SQLite detection log: one row per connection session,
// one per processed ping, and one per detection.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/security"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the database at path and applies any pending
// embedded migrations.
func Open(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database without touching its schema, so a database left
// dirty by a failed migration can still be repaired with MigrateForce.
func OpenDB(path string) (*DB, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used to stamp sessions. Tests only.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// StartSession records a new connection session to addr and returns its id.
func (db *DB) StartSession(addr string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO sessions (session_id, addr, started_unix) VALUES (?, ?, ?)`,
		id.String(), addr, unixSeconds(db.clock.Now()))
	if err != nil {
		return uuid.Nil, fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// RecordFrame stores the ping summary and every detection of f in one
// transaction.
func (db *DB) RecordFrame(sessionID uuid.UUID, rec *l2pings.PingRecord, f pipeline.Frame) error {
	if rec == nil {
		return fmt.Errorf("record frame %s: nil ping record", f.ID)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO pings (
			frame_id, session_id, ping_id, variant, beams, ranges,
			range_resolution, speed_of_sound, mean, std, neural_disabled, ts_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID.String(), sessionID.String(), rec.PingID, rec.Variant.String(), rec.Beams, rec.Ranges,
		rec.RangeResolution, rec.SpeedOfSound, f.Mean, f.Std, f.NeuralDisabled, unixSeconds(f.Time),
	); err != nil {
		return fmt.Errorf("insert ping %d: %w", rec.PingID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO detections (
			frame_id, x, y, width, height, confidence, source, class_id,
			box_x0, box_y0, box_x1, box_y1
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range f.Detections {
		if _, err := stmt.Exec(f.ID.String(), d.X, d.Y, d.Width, d.Height, d.Confidence, d.Source, d.ClassID,
			d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y); err != nil {
			return fmt.Errorf("insert detection for ping %d: %w", rec.PingID, err)
		}
	}
	return tx.Commit()
}

// Sink returns a pipeline sink that records every frame under sessionID.
// Write failures are logged and the frame is dropped.
func (db *DB) Sink(sessionID uuid.UUID) pipeline.Sink {
	return pipeline.SinkFunc(func(rec *l2pings.PingRecord, f pipeline.Frame) {
		if err := db.RecordFrame(sessionID, rec, f); err != nil {
			monitoring.Logf("db: %v", err)
		}
	})
}

// LoggedDetection is a stored detection with the ping it came from.
type LoggedDetection struct {
	SessionID uuid.UUID
	FrameID   uuid.UUID
	PingID    uint32
	Time      time.Time
	sonar.Detection
}

func (d *LoggedDetection) String() string {
	return fmt.Sprintf("ping %d @ %s: %s x=%.2f y=%.2f %.2fx%.2f conf=%.2f",
		d.PingID, d.Time.Format(time.RFC3339Nano), d.Source, d.X, d.Y, d.Width, d.Height, d.Confidence)
}

// RecentDetections returns up to limit detections, newest ping first.
func (db *DB) RecentDetections(limit int) ([]LoggedDetection, error) {
	if limit <= 0 {
		return []LoggedDetection{}, nil
	}
	rows, err := db.Query(`
		SELECT p.session_id, d.frame_id, p.ping_id, p.ts_unix,
		       d.x, d.y, d.width, d.height, d.confidence, d.source, d.class_id,
		       d.box_x0, d.box_y0, d.box_x1, d.box_y1
		FROM detections d
		JOIN pings p ON p.frame_id = d.frame_id
		ORDER BY p.ts_unix DESC, d.detection_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LoggedDetection{}
	for rows.Next() {
		var (
			d              LoggedDetection
			session, frame string
			ts             float64
			x0, y0, x1, y1 int
		)
		if err := rows.Scan(&session, &frame, &d.PingID, &ts,
			&d.X, &d.Y, &d.Width, &d.Height, &d.Confidence, &d.Source, &d.ClassID,
			&x0, &y0, &x1, &y1); err != nil {
			return nil, err
		}
		if d.SessionID, err = uuid.Parse(session); err != nil {
			return nil, fmt.Errorf("session id %q: %w", session, err)
		}
		if d.FrameID, err = uuid.Parse(frame); err != nil {
			return nil, fmt.Errorf("frame id %q: %w", frame, err)
		}
		d.Time = fromUnixSeconds(ts)
		d.Box = image.Rect(x0, y0, x1, y1)
		out = append(out, d)
	}
	return out, rows.Err()
}

// PingCount returns how many pings were logged for sessionID.
func (db *DB) PingCount(sessionID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pings WHERE session_id = ?`, sessionID.String()).Scan(&n)
	return n, err
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("db: failed to create tailsql server: %v", err)
	} else {
		tsql.SetDB("sqlite://sonar.db", db.DB, &tailsql.DBOptions{
			Label: "Sonar detection log",
		})
		debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	}

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "sonar-backup"
	}
	backupPath, err := security.BackupPath(name, db.clock.Now().Unix())
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid backup path: %v", err), http.StatusBadRequest)
		return
	}
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("db: failed to remove backup file: %v", err)
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		monitoring.Logf("db: backup copy: %v", err)
	}
}
