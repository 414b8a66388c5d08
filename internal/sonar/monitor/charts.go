package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/sonar.report/internal/sonar"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleHistogram renders the intensity histogram of the latest canvas.
func (ws *WebServer) handleHistogram(w http.ResponseWriter, r *http.Request) {
	snap := ws.latestSnapshot()
	if snap == nil || snap.frame.Canvas == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no canvas yet")
		return
	}

	x := make([]string, 256)
	y := make([]opts.BarData, 256)
	for i, n := range snap.histogram {
		x[i] = strconv.Itoa(i)
		y[i] = opts.BarData{Value: n}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Canvas intensity", Theme: "dark", Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Canvas intensity",
			Subtitle: fmt.Sprintf("ping=%d mean=%.1f std=%.1f %s", snap.frame.PingID, snap.frame.Mean, snap.frame.Std, snap.frame.Time.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "level"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	bar.SetXAxis(x).AddSeries("pixels", y)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// ConfidenceColor runs from red at 0 through yellow to green at 1.
func ConfidenceColor(conf float64) color.Color {
	c := colorful.Hsv(120*sonar.ClampConfidence(conf), 0.9, 0.95)
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// handleDetectionScatter plots the world-space centres of the recent
// detections as a PNG, coloured by confidence.
func (ws *WebServer) handleDetectionScatter(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	history := make([][]sonar.Detection, len(ws.history))
	copy(history, ws.history)
	ws.mu.RUnlock()

	p := plot.New()
	p.Title.Text = "Recent detections"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	var n int
	for age, dets := range history {
		for _, d := range dets {
			s, err := plotter.NewScatter(plotter.XYs{{X: d.X, Y: d.Y}})
			if err != nil {
				continue
			}
			s.GlyphStyle.Color = ConfidenceColor(d.Confidence)
			s.GlyphStyle.Radius = vg.Points(2 + 4*float64(age+1)/float64(len(history)))
			if d.Source == sonar.SourceNeural {
				s.GlyphStyle.Shape = draw.PyramidGlyph{}
			} else {
				s.GlyphStyle.Shape = draw.CircleGlyph{}
			}
			p.Add(s)
			n++
		}
	}
	if n == 0 {
		// Keep the axes sensible on an empty plot.
		p.X.Min, p.X.Max = -5, 5
		p.Y.Min, p.Y.Max = 0, 10
	}

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
