package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/httputil"
	"github.com/banshee-data/tunnel.report/internal/serialmux"
	"github.com/banshee-data/tunnel.report/internal/version"
)

// AttachAdminRoutes registers the recorder debug pages under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("Version", fmt.Sprintf("%s (%s)", version.Version, version.GitSHA))
	debug.KVFunc("Session", func() any {
		info := s.recorder.Info()
		return fmt.Sprintf("%s %s, %d samples", info.State, info.SessionID, info.TotalRecords)
	})
	debug.KVFunc("Status", func() any {
		a := s.recorder.Assessment()
		return fmt.Sprintf("%s (avg %.3f, %d orientation changes)", a.Status, a.AvgAcceleration, a.OrientationChanges)
	})

	debug.HandleFunc("status-tail", "live tail of classification changes", s.handleStatusTail)
	debug.HandleFunc("window-chart", "acceleration over the classification window", s.handleWindowChart)
}

func (s *Server) handleStatusTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, updates := s.recorder.Subscribe()
	defer s.recorder.Unsubscribe(id)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for u := range updates {
			b, err := json.Marshal(u)
			if err != nil {
				continue
			}
			select {
			case lines <- string(b):
			case <-r.Context().Done():
				return
			}
		}
	}()
	serialmux.ServeSSE(w, r, lines)
}

// handleWindowChart renders the per-sample acceleration magnitude of the
// current window against the classifier thresholds.
func (s *Server) handleWindowChart(w http.ResponseWriter, r *http.Request) {
	window := s.recorder.Window()
	a := s.recorder.Assessment()
	th := s.recorder.Thresholds()

	var x []string
	var magnitude, tunnel, still []opts.LineData
	for _, sample := range window {
		if !sample.IsMotion() {
			continue
		}
		x = append(x, sample.Timestamp())
		magnitude = append(magnitude, opts.LineData{Value: classify.Magnitude(sample.Motion.Acceleration)})
		tunnel = append(tunnel, opts.LineData{Value: th.TunnelAcceleration})
		still = append(still, opts.LineData{Value: th.StillAcceleration})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Classification window",
			Subtitle: fmt.Sprintf("%s: avg %.3f over %d samples, %d orientation changes", a.Message, a.AvgAcceleration, a.WindowLength, a.OrientationChanges),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("acceleration", magnitude).
		AddSeries("tunnel threshold", tunnel).
		AddSeries("still threshold", still)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
