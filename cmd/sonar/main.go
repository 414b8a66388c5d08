package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/db"
	"github.com/banshee-data/sonar.report/internal/monitoring"
	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
	"github.com/banshee-data/sonar.report/internal/sonar/l5neural"
	"github.com/banshee-data/sonar.report/internal/sonar/monitor"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
	"github.com/banshee-data/sonar.report/internal/version"
)

func init() {
	// .env only supplies defaults; a missing file is fine.
	_ = godotenv.Load()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var (
	addr       = flag.String("addr", envOr("SONAR_ADDR", fmt.Sprintf("192.168.2.42:%d", network.DATA_PORT)), "Sonar head address (host:port)")
	serialPort = flag.String("serial", "", "Serial device to use instead of TCP (e.g. /dev/ttyUSB0)")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	dbFile     = flag.String("db", envOr("SONAR_DB", "sonar.db"), "Path to the SQLite detection log")
	tuningFile = flag.String("tuning", envOr("SONAR_TUNING", ""), "Tuning config JSON (defaults when empty)")
	modelFile  = flag.String("model", envOr("SONAR_MODEL", ""), "ONNX detection model (neural path off when empty)")
	listen     = flag.String("listen", ":8082", "HTTP listen address")
	grpcListen = flag.String("grpc-listen", ":50052", "gRPC health listen address (empty to disable)")
	devMode    = flag.Bool("dev", false, "Run against the built-in sonar simulator")
	debug      = flag.Bool("debug", false, "Enable diag and trace log streams")
	showVer    = flag.Bool("version", false, "Print version and exit")

	migrateForce = flag.String("migrate-force", "", "Mark the database clean at this migration version and exit (recovery only)")
)

// setLogStreams routes every package's ops stream to stderr, and diag and
// trace only when debugging.
func setLogStreams(debugging bool) {
	var diag, trace io.Writer
	if debugging {
		diag, trace = os.Stderr, os.Stderr
	}
	l1wire.SetLogWriters(os.Stderr, diag, trace)
	l2pings.SetLogWriters(os.Stderr, diag, trace)
	l4detect.SetLogWriters(os.Stderr, diag, trace)
	l5neural.SetLogWriters(os.Stderr, diag, trace)
	network.SetLogWriters(os.Stderr, diag, trace)
	pipeline.SetLogWriters(os.Stderr, diag, trace)
	monitoring.SetWriter("[sonar] ", os.Stderr)
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// openEngine loads the model if one is configured. A model that fails to
// load leaves the statistical path running on its own.
func openEngine(path string, size int) (l5neural.Engine, func()) {
	if path == "" {
		return nil, func() {}
	}
	e, err := l5neural.NewONNXEngine(path, size)
	if err != nil {
		log.Printf("neural detector unavailable: %v", err)
		return nil, func() {}
	}
	log.Printf("loaded model %s", path)
	return e, func() { e.Close() }
}

// newClient builds the sonar client and arms it with the tuned fire command.
// The head sends nothing until it has been fired.
func newClient(tuning *config.TuningConfig, d network.Dialer, target string) (*network.Client, error) {
	client, err := network.NewClient(network.ClientConfigFromTuning(tuning, target), d, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sonar client: %w", err)
	}
	if err := client.SetFire(network.FireCommandFromTuning(tuning)); err != nil {
		return nil, fmt.Errorf("invalid fire settings: %w", err)
	}
	return client, nil
}

// forceMigration handles -migrate-force.
func forceMigration(path, arg string) error {
	version, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid version number %q", arg)
	}
	if err := db.ForceVersion(path, version); err != nil {
		return err
	}
	log.Printf("migration version forced to %d", version)
	return nil
}

func dialer() (network.Dialer, string, error) {
	switch {
	case *devMode:
		return &network.SimDialer{Config: l2pings.DefaultSimConfig(), Interval: 100 * time.Millisecond}, "simulator", nil
	case *serialPort != "":
		return &network.SerialDialer{Options: network.SerialOptions{BaudRate: *baudRate}}, *serialPort, nil
	case *addr == "":
		return nil, "", errors.New("sonar address is required")
	default:
		return network.NewRealDialer(5 * time.Second), *addr, nil
	}
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Printf("sonar %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	setLogStreams(*debug)

	if *migrateForce != "" {
		if err := forceMigration(*dbFile, *migrateForce); err != nil {
			log.Fatalf("migrate force failed: %v", err)
		}
		return
	}

	tuning, err := loadTuning(*tuningFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	d, target, err := dialer()
	if err != nil {
		log.Fatal(err)
	}
	client, err := newClient(tuning, d, target)
	if err != nil {
		log.Fatal(err)
	}

	pcfg := pipeline.ConfigFromTuning(tuning)
	engine, closeEngine := openEngine(*modelFile, pcfg.Neural.LetterboxSize)
	defer closeEngine()
	pipe, err := pipeline.New(pcfg, engine, nil)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	detLog, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer detLog.Close()
	session, err := detLog.StartSession(target)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	log.Printf("session %s: %s", session, target)

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:  *listen,
		Client:   client,
		Detector: pipe,
		Log:      detLog,
		Fire:     client,
		Attach:   detLog.AttachAdminRoutes,
	})
	health := monitor.NewHealth()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sonar client stopped: %v", err)
		}
		log.Print("client routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx, client.Pings(), detLog.Sink(session), ws); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Watch(ctx, client.Events())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("HTTP server error: %v", err)
			stop()
		}
	}()

	var grpcServer *grpc.Server
	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen for gRPC on %s: %v", *grpcListen, err)
		}
		grpcServer = grpc.NewServer()
		health.Register(grpcServer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("gRPC health on %s", *grpcListen)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Print("shutting down...")
	if !client.Close() {
		log.Print("sonar client did not stop in time")
	}
	health.Shutdown()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	wg.Wait()
	log.Print("graceful shutdown complete")
}
