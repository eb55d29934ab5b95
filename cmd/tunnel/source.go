package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/banshee-data/tunnel.report/internal/config"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensorenv"
	"github.com/banshee-data/tunnel.report/internal/serialmux"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
)

// source bundles a SensorEnvironment with the pieces main needs to run and
// expose it.
type source struct {
	name   string
	env    recording.SensorEnvironment
	device http.Handler
	// runners are started in their own goroutines and stop with ctx.
	runners []func(ctx context.Context) error
	admin   func(mux *http.ServeMux)
	close   func() error
}

func noClose() error { return nil }

// newSource builds the configured sensor source. Serial sources open the
// device immediately.
func newSource(cfg *config.Config, clock timeutil.Clock) (*source, error) {
	switch cfg.GetSource() {
	case config.SourceSynthetic:
		profile, err := sensorenv.ParseProfile(cfg.GetSyntheticProfile())
		if err != nil {
			return nil, err
		}
		synth := sensorenv.NewSynthetic()
		synth.SetProfile(profile)
		rate := cfg.GetSyntheticRateHz()
		return &source{
			name: config.SourceSynthetic,
			env:  synth,
			runners: []func(context.Context) error{
				func(ctx context.Context) error { return synth.Run(ctx, clock, rate) },
			},
			close: noClose,
		}, nil

	case config.SourceWebSocket:
		ws := sensorenv.NewWebSocket(cfg.GetAllowedOrigins()...)
		return &source{
			name:   config.SourceWebSocket,
			env:    ws,
			device: ws,
			close:  ws.Close,
		}, nil

	case config.SourceSerial:
		mux, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions())
		if err != nil {
			return nil, err
		}
		serialEnv := sensorenv.NewSerial(mux)
		return &source{
			name: config.SourceSerial,
			env:  serialEnv,
			runners: []func(context.Context) error{
				mux.Monitor,
				serialEnv.Run,
			},
			admin: mux.AttachAdminRoutes,
			close: mux.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.GetSource())
}
