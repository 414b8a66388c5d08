// Command pcap-replay runs a packet capture of a sonar session through the
// framer, decoder and detectors, optionally logging every frame to SQLite.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/db"
	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l5neural"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

var (
	pcapFile   = flag.String("pcap", "", "Capture file to replay (required)")
	port       = flag.Int("port", network.DATA_PORT, "TCP source port of the sonar stream")
	dbFile     = flag.String("db", "", "SQLite detection log to write (none when empty)")
	tuningFile = flag.String("tuning", "", "Tuning config JSON (defaults when empty)")
	modelFile  = flag.String("model", "", "ONNX detection model (neural path off when empty)")
	quiet      = flag.Bool("quiet", false, "Only print the summary")
	debug      = flag.Bool("debug", false, "Enable diag and trace log streams")
)

// replayer feeds captured payloads through the framer and decoder and runs
// each ping through the pipeline. The pipeline clock follows the capture
// timestamps.
type replayer struct {
	framer  *l1wire.Framer
	decoder *l2pings.Decoder
	pipe    *pipeline.Pipeline
	clock   *timeutil.MockClock
	sinks   []pipeline.Sink
	out     io.Writer
	ctx     context.Context

	pings      int
	detections int
	errors     int
}

func newReplayer(ctx context.Context, cfg *config.TuningConfig, engine l5neural.Engine, out io.Writer, sinks ...pipeline.Sink) (*replayer, error) {
	clock := timeutil.NewMockClock(time.Unix(0, 0).UTC())
	pipe, err := pipeline.New(pipeline.ConfigFromTuning(cfg), engine, clock)
	if err != nil {
		return nil, err
	}
	resync, err := l1wire.ParseResyncPolicy(cfg.GetResyncPolicy())
	if err != nil {
		return nil, err
	}
	return &replayer{
		framer:  l1wire.NewFramer(l1wire.FramerConfig{Resync: resync, MaxPayload: uint32(cfg.GetMaxPayloadBytes())}),
		decoder: l2pings.NewDecoder(),
		pipe:    pipe,
		clock:   clock,
		sinks:   sinks,
		out:     out,
		ctx:     ctx,
	}, nil
}

func (r *replayer) handle(ts time.Time, payload []byte) {
	r.clock.Set(ts)
	r.framer.Feed(payload, r.handleFrame)
}

func (r *replayer) handleFrame(frame l1wire.RawFrame) {
	msg, err := r.decoder.Decode(frame)
	if err != nil {
		r.errors++
		log.Printf("decode: %v", err)
		return
	}
	rec, ok := msg.(*l2pings.PingRecord)
	if !ok {
		return
	}
	f, err := r.pipe.Process(r.ctx, rec)
	if err != nil {
		r.errors++
		log.Printf("ping %d: %v", rec.PingID, err)
		return
	}
	r.pings++
	r.detections += len(f.Detections)
	for _, s := range r.sinks {
		s.HandleFrame(rec, f)
	}
	if r.out == nil {
		return
	}
	fmt.Fprintf(r.out, "%s ping=%d beams=%d ranges=%d detections=%d\n",
		f.Time.Format(time.RFC3339Nano), rec.PingID, rec.Beams, rec.Ranges, len(f.Detections))
	for _, d := range f.Detections {
		fmt.Fprintf(r.out, "  %-11s x=%6.2f y=%6.2f w=%5.2f h=%5.2f conf=%.2f class=%d\n",
			d.Source, d.X, d.Y, d.Width, d.Height, d.Confidence, d.ClassID)
	}
}

func (r *replayer) summary(stats network.ReplayStats) string {
	fs := r.framer.Stats()
	return fmt.Sprintf("packets=%d segments=%d bytes=%d frames=%d flushes=%d dropped_bytes=%d pings=%d detections=%d errors=%d",
		stats.Packets, stats.Segments, stats.Bytes, fs.Frames, fs.Flushes, fs.DroppedBytes, r.pings, r.detections, r.errors)
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *debug {
		l1wire.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
		l2pings.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
		pipeline.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
	}

	cfg := config.DefaultTuningConfig()
	if *tuningFile != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*tuningFile); err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var engine l5neural.Engine
	if *modelFile != "" {
		e, err := l5neural.NewONNXEngine(*modelFile, l5neural.ConfigFromTuning(cfg).LetterboxSize)
		if err != nil {
			log.Fatalf("failed to load model: %v", err)
		}
		defer e.Close()
		engine = e
	}

	var sinks []pipeline.Sink
	if *dbFile != "" {
		detLog, err := db.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer detLog.Close()
		session, err := detLog.StartSession("pcap:" + *pcapFile)
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		sinks = append(sinks, detLog.Sink(session))
		log.Printf("logging to %s session %s", *dbFile, session)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	if *quiet {
		out = nil
	}
	r, err := newReplayer(ctx, cfg, engine, out, sinks...)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	stats, err := network.ReplayPCAP(ctx, *pcapFile, *port, r.handle)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	log.Printf("replay %s in %v: %s", *pcapFile, time.Since(start).Round(time.Millisecond), r.summary(stats))
}

