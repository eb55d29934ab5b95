package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/tunnel.report/internal/config"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
)

// TestFlagDefaults verifies flags default to empty so the config file and
// package defaults apply.
func TestFlagDefaults(t *testing.T) {
	if *listen != "" || *sourceName != "" || *port != "" || *baud != 0 {
		t.Errorf("unexpected flag defaults: listen=%q source=%q port=%q baud=%d", *listen, *sourceName, *port, *baud)
	}
	if *devMode || *debugMode || *showVersion {
		t.Error("boolean flags should default to false")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := loadConfig("", overrides{})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.GetSource() != config.SourceWebSocket || cfg.GetListen() != ":8080" {
		t.Errorf("defaults = %q %q", cfg.GetSource(), cfg.GetListen())
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnel.yaml")
	body := "listen: \":9000\"\nsource: serial\nserial_port: /dev/ttyUSB0\nmqtt_topic: file/topic\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, overrides{listen: ":7000", baud: 9600, mqttBroker: "tcp://broker:1883"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.GetListen() != ":7000" {
		t.Errorf("listen = %q, want :7000", cfg.GetListen())
	}
	if cfg.GetSource() != config.SourceSerial || cfg.GetSerialPort() != "/dev/ttyUSB0" {
		t.Errorf("source = %q port = %q", cfg.GetSource(), cfg.GetSerialPort())
	}
	if cfg.GetSerialOptions().BaudRate != 9600 {
		t.Errorf("baud = %d, want 9600", cfg.GetSerialOptions().BaudRate)
	}
	if cfg.GetMQTTBroker() != "tcp://broker:1883" || cfg.GetMQTTTopic() != "file/topic" {
		t.Errorf("mqtt = %q %q", cfg.GetMQTTBroker(), cfg.GetMQTTTopic())
	}
}

func TestLoadConfig_DevForcesSynthetic(t *testing.T) {
	cfg, err := loadConfig("", overrides{source: "serial", dev: true, profile: "tunnel"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.GetSource() != config.SourceSynthetic || cfg.GetSyntheticProfile() != "tunnel" {
		t.Errorf("source = %q profile = %q", cfg.GetSource(), cfg.GetSyntheticProfile())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := loadConfig("", overrides{source: "serial"}); err == nil {
		t.Error("expected error for serial source without a port")
	}
	if _, err := loadConfig("", overrides{source: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown source")
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"), overrides{}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestNewSource_WebSocket(t *testing.T) {
	cfg, _ := loadConfig("", overrides{})
	src, err := newSource(cfg, timeutil.RealClock{})
	if err != nil {
		t.Fatalf("newSource() error = %v", err)
	}
	defer src.close()
	if src.device == nil {
		t.Error("websocket source should expose a device handler")
	}
	if len(src.runners) != 0 {
		t.Errorf("websocket source has %d runners, want 0", len(src.runners))
	}
}

func TestNewSource_SyntheticDrivesRecorder(t *testing.T) {
	cfg, err := loadConfig("", overrides{dev: true, profile: "tunnel"})
	if err != nil {
		t.Fatal(err)
	}
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	src, err := newSource(cfg, clock)
	if err != nil {
		t.Fatalf("newSource() error = %v", err)
	}
	if src.device != nil || len(src.runners) != 1 {
		t.Fatalf("synthetic source = %+v", src)
	}

	rec, err := newRecorder(cfg, src.env, clock)
	if err != nil {
		t.Fatalf("newRecorder() error = %v", err)
	}
	defer rec.Close()
	if _, err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.runners[0](ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for rec.SampleCount() < 30 && time.Now().Before(deadline) {
		clock.Advance(20 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if rec.SampleCount() < 30 {
		t.Fatalf("SampleCount() = %d, want at least 30", rec.SampleCount())
	}
	if rec.State() != recording.StateActive {
		t.Errorf("State() = %s", rec.State())
	}
}

func TestNewSource_SerialOpenFails(t *testing.T) {
	cfg, err := loadConfig("", overrides{source: "serial", port: filepath.Join(t.TempDir(), "no-such-tty")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newSource(cfg, timeutil.RealClock{}); err == nil {
		t.Error("expected error opening a missing serial device")
	}
}

func TestNewRecorder_UsesConfiguredThresholds(t *testing.T) {
	window := 40
	cfg := &config.Config{WindowSize: &window}
	rec, err := newRecorder(cfg, nil, timeutil.RealClock{})
	if err != nil {
		t.Fatalf("newRecorder() error = %v", err)
	}
	if rec.Thresholds().WindowSize != 40 {
		t.Errorf("WindowSize = %d, want 40", rec.Thresholds().WindowSize)
	}
}
