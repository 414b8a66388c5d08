// Package monitor serves the sonar debug surfaces: a JSON status API, chart
// pages, a live websocket detection feed, and a gRPC health service.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/sonar.report/internal/db"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l3canvas"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/version"
)

// HISTORY_FRAMES is how many recent frames feed the detection scatter.
const HISTORY_FRAMES = 50

// StatsSource reports transport statistics; *network.Client satisfies it.
type StatsSource interface {
	Stats() network.ClientStats
}

// Detector is the part of the pipeline the server can toggle.
type Detector interface {
	Enabled() bool
	SetEnabled(on bool)
	NeuralDisabled() bool
}

// DetectionLog reads stored detections; *db.DB satisfies it.
type DetectionLog interface {
	RecentDetections(limit int) ([]db.LoggedDetection, error)
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address  string
	Client   StatsSource
	Detector Detector
	Log      DetectionLog
	Hub      *Hub
	Fire     FireControl
	// Attach, if set, adds extra routes (the DB admin pages) to the mux.
	Attach   func(mux *http.ServeMux)
}

// snapshot is the most recent frame and what the charts need from it.
type snapshot struct {
	frame     pipeline.Frame
	ping      *l2pings.PingRecord
	histogram [256]int
}

// WebServer handles the HTTP interface. It is also a pipeline sink: every
// frame it receives becomes the latest snapshot and is broadcast to the hub.
type WebServer struct {
	address  string
	client   StatsSource
	detector Detector
	log      DetectionLog
	hub      *Hub
	fire     FireControl
	attach   func(mux *http.ServeMux)
	server   *http.Server

	mu      sync.RWMutex
	latest  *snapshot
	history [][]sonar.Detection
	frames  uint64
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  config.Address,
		client:   config.Client,
		detector: config.Detector,
		log:      config.Log,
		hub:      config.Hub,
		fire:     config.Fire,
		attach:   config.Attach,
	}
	if ws.hub == nil {
		ws.hub = NewHub()
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.Handler(),
	}
	return ws
}

// Hub returns the websocket hub frames are broadcast on.
func (ws *WebServer) Hub() *Hub {
	return ws.hub
}

// HandleFrame records f as the latest frame and broadcasts it.
func (ws *WebServer) HandleFrame(rec *l2pings.PingRecord, f pipeline.Frame) {
	snap := &snapshot{frame: f, ping: rec}
	if f.Canvas != nil {
		snap.histogram = l3canvas.Histogram(f.Canvas.Img)
	}
	ws.mu.Lock()
	ws.latest = snap
	ws.frames++
	ws.history = append(ws.history, f.Detections)
	if len(ws.history) > HISTORY_FRAMES {
		ws.history = ws.history[len(ws.history)-HISTORY_FRAMES:]
	}
	ws.mu.Unlock()

	if err := ws.hub.Broadcast(f); err != nil {
		monitoring.Logf("monitor: broadcast ping %d: %v", f.PingID, err)
	}
}

func (ws *WebServer) latestSnapshot() *snapshot {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.latest
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("monitor: encode response: %v", err)
	}
}

// Start begins the HTTP server in a goroutine and shuts it down when ctx
// ends.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	ws.hub.Close()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

// Handler returns the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleDashboard)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/detections", ws.handleDetections)
	mux.HandleFunc("/api/detection/enabled", ws.handleDetectionEnabled)
	mux.HandleFunc("/api/fire", ws.handleFire)
	mux.HandleFunc("/debug/sonar/histogram", ws.handleHistogram)
	mux.HandleFunc("/debug/sonar/detections.png", ws.handleDetectionScatter)
	mux.HandleFunc("/debug/sonar/canvas.png", ws.handleCanvas)
	mux.Handle("/ws/detections", ws.hub)
	if ws.attach != nil {
		ws.attach(mux)
	}
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "sonar", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// Status is the /api/status response.
type Status struct {
	Version          string               `json:"version"`
	Client           *network.ClientStats `json:"client,omitempty"`
	DetectionEnabled bool                 `json:"detection_enabled"`
	NeuralDisabled   bool                 `json:"neural_disabled"`
	Frames           uint64               `json:"frames"`
	Viewers          int                  `json:"viewers"`
	LastPing         *FrameSummary        `json:"last_ping,omitempty"`
}

// FrameSummary describes the latest frame without its detections.
type FrameSummary struct {
	PingID     uint32    `json:"ping_id"`
	Time       time.Time `json:"time"`
	Beams      int       `json:"beams"`
	Ranges     int       `json:"ranges"`
	Detections int       `json:"detections"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
	Transform  string    `json:"transform,omitempty"`
}

func (ws *WebServer) status() Status {
	st := Status{Version: version.Version, Viewers: ws.hub.Clients()}
	if ws.client != nil {
		cs := ws.client.Stats()
		st.Client = &cs
	}
	if ws.detector != nil {
		st.DetectionEnabled = ws.detector.Enabled()
		st.NeuralDisabled = ws.detector.NeuralDisabled()
	}
	ws.mu.RLock()
	st.Frames = ws.frames
	snap := ws.latest
	ws.mu.RUnlock()
	if snap != nil {
		f := snap.frame
		sum := &FrameSummary{
			PingID:     f.PingID,
			Time:       f.Time,
			Detections: len(f.Detections),
			Mean:       f.Mean,
			Std:        f.Std,
			Transform:  f.Transform,
		}
		if snap.ping != nil {
			sum.Beams, sum.Ranges = snap.ping.Beams, snap.ping.Ranges
		}
		st.LastPing = sum
	}
	return st
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.writeJSON(w, ws.status())
}

// handleDetections returns the latest frame, or with ?limit=N the N most
// recent logged detections.
func (ws *WebServer) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 || limit > 1000 {
			ws.writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		if ws.log == nil {
			ws.writeJSONError(w, http.StatusNotFound, "no detection log configured")
			return
		}
		dets, err := ws.log.RecentDetections(limit)
		if err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("recent detections: %v", err))
			return
		}
		ws.writeJSON(w, dets)
		return
	}
	snap := ws.latestSnapshot()
	if snap == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no frame yet")
		return
	}
	ws.writeJSON(w, snap.frame)
}

func (ws *WebServer) handleDetectionEnabled(w http.ResponseWriter, r *http.Request) {
	if ws.detector == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no detector")
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		on, err := strconv.ParseBool(r.URL.Query().Get("on"))
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "on must be true or false")
			return
		}
		ws.detector.SetEnabled(on)
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.writeJSON(w, map[string]bool{"enabled": ws.detector.Enabled()})
}

func (ws *WebServer) handleCanvas(w http.ResponseWriter, r *http.Request) {
	snap := ws.latestSnapshot()
	if snap == nil || snap.frame.Canvas == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no canvas yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, snap.frame.Canvas.Img); err != nil {
		monitoring.Logf("monitor: encode canvas: %v", err)
	}
}

func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!doctype html>
<html>
<head><title>sonar.report</title></head>
<body style="background:#111;color:#ddd;font-family:sans-serif">
<h1>sonar.report</h1>
<ul>
<li><a href="/api/status">status</a></li>
<li><a href="/api/detections">latest detections</a></li>
<li><a href="/debug/sonar/histogram">canvas histogram</a></li>
<li><a href="/debug/">admin</a></li>
</ul>
<img src="/debug/sonar/canvas.png" width="480">
<img src="/debug/sonar/detections.png" width="480">
</body>
</html>
`
