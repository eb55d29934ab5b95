package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/tunnel.report/internal/api"
	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/config"
	"github.com/banshee-data/tunnel.report/internal/monitoring"
	"github.com/banshee-data/tunnel.report/internal/publish"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/serialmux"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
	"github.com/banshee-data/tunnel.report/internal/version"
)

var (
	listen      = flag.String("listen", "", "Listen address (default :8080)")
	configFile  = flag.String("config", "", "Path to a .json or .yaml config file")
	sourceName  = flag.String("source", "", "Sensor source: websocket, serial or synthetic")
	port        = flag.String("port", "", "Serial port to use when -source=serial")
	baud        = flag.Int("baud", 0, "Serial baud rate (default 115200)")
	mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL for status updates, e.g. tcp://localhost:1883")
	mqttTopic   = flag.String("mqtt-topic", "", "MQTT topic for status updates (default tunnel/status)")
	profile     = flag.String("profile", "", "Synthetic motion profile: still, walking or tunnel")
	devMode     = flag.Bool("dev", false, "Run in dev mode with the synthetic sensor generator")
	debugMode   = flag.Bool("debug", false, "Log every sample and status publish")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// overrides are command-line values that take precedence over the config
// file. Empty values leave the file setting alone.
type overrides struct {
	listen     string
	source     string
	port       string
	baud       int
	mqttBroker string
	mqttTopic  string
	profile    string
	dev        bool
}

func flagOverrides() overrides {
	return overrides{
		listen:     *listen,
		source:     *sourceName,
		port:       *port,
		baud:       *baud,
		mqttBroker: *mqttBroker,
		mqttTopic:  *mqttTopic,
		profile:    *profile,
		dev:        *devMode,
	}
}

func (o overrides) apply(cfg *config.Config) {
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&cfg.Listen, o.listen)
	set(&cfg.Source, o.source)
	set(&cfg.SerialPort, o.port)
	set(&cfg.MQTTBroker, o.mqttBroker)
	set(&cfg.MQTTTopic, o.mqttTopic)
	set(&cfg.SyntheticProfile, o.profile)
	if o.dev {
		synthetic := config.SourceSynthetic
		cfg.Source = &synthetic
	}
	if o.baud > 0 {
		if cfg.Serial == nil {
			cfg.Serial = &serialmux.PortOptions{}
		}
		cfg.Serial.BaudRate = o.baud
	}
}

// loadConfig reads the optional config file, applies command-line overrides
// and validates the result.
func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newRecorder(cfg *config.Config, env recording.SensorEnvironment, clock timeutil.Clock) (*recording.Recorder, error) {
	classifier, err := classify.New(cfg.Thresholds())
	if err != nil {
		return nil, err
	}
	return recording.NewRecorder(env,
		recording.WithClock(clock),
		recording.WithClassifier(classifier),
		recording.WithDisplayCapacity(cfg.GetDisplayCapacity()),
	), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("tunnel %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	monitoring.SetDebug(*debugMode)

	cfg, err := loadConfig(*configFile, flagOverrides())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	clock := timeutil.RealClock{}
	src, err := newSource(cfg, clock)
	if err != nil {
		log.Fatalf("failed to create %s sensor source: %v", cfg.GetSource(), err)
	}
	defer func() {
		if err := src.close(); err != nil {
			log.Printf("failed to close sensor source: %v", err)
		}
	}()

	rec, err := newRecorder(cfg, src.env, clock)
	if err != nil {
		log.Fatalf("failed to create recorder: %v", err)
	}
	log.Printf("recording from %s source, window %d samples", src.name, rec.Thresholds().WindowSize)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// source IO: serial monitor and line decoding, or the synthetic generator
	for _, run := range src.runners {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("sensor source stopped: %v", err)
			}
		}(run)
	}

	// mirror classification changes to MQTT when a broker is configured
	if broker := cfg.GetMQTTBroker(); broker != "" {
		pub, err := publish.Connect(broker, cfg.GetMQTTClientID(), cfg.GetMQTTTopic())
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		id, updates := rec.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pub.Close()
			defer rec.Unsubscribe(id)
			pub.Run(ctx, updates)
			log.Print("publish routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		opts := []api.Option{api.WithUnits(cfg.GetUnits())}
		if src.device != nil {
			opts = append(opts, api.WithDeviceHandler(src.device))
		}
		apiServer := api.NewServer(rec, opts...)
		mux := apiServer.ServeMux()
		apiServer.AttachAdminRoutes(mux)
		if src.admin != nil {
			src.admin(mux)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// stop any active session so its subscriptions are released before the
	// source goes away
	if err := rec.Close(); err != nil {
		log.Printf("failed to stop recording: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
