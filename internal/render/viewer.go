package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/prism-data/prism/internal/projection"
)

// viridis-style ramp shared by the interactive charts.
var viewerRamp = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteHTML renders an interactive view of a dataset as a standalone HTML
// page. 3D projections render as paired heatmaps, 2D projections as paired
// line charts.
func WriteHTML(w io.Writer, ds *projection.Dataset, opts projection.Options) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Projection %s", ds.Key)

	switch ds.Key.Type {
	case projection.Type3D:
		page.AddCharts(
			heatmapChart(ds, "Minimum implausibility", implValues(ds, opts)),
			heatmapChart(ds, "Line-of-sight depth", depthValues(ds)),
		)
	case projection.Type2D:
		page.AddCharts(
			lineChart(ds, "Minimum implausibility", "I_min", implSeries(ds, opts)),
			lineChart(ds, "Line-of-sight depth", "fraction plausible", depthSeries(ds)),
		)
	default:
		return fmt.Errorf("cannot render projection type %q", ds.Key.Type)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart page: %v", err)
	}
	return nil
}

func implValues(ds *projection.Dataset, o projection.Options) func(i int) float64 {
	return func(i int) float64 {
		return clampImpl(ds.Cells[i].MinImpl, ds.FirstCut, o.FullImplRange)
	}
}

func depthValues(ds *projection.Dataset) func(i int) float64 {
	return func(i int) float64 { return ds.Cells[i].FracPlausible }
}

func heatmapChart(ds *projection.Dataset, title string, value func(i int) float64) *charts.HeatMap {
	res := ds.Resolution

	xLabels := make([]string, res)
	yLabels := make([]string, res)
	for i := 0; i < res; i++ {
		xLabels[i] = fmt.Sprintf("%.3g", ds.Axes[0][i])
		yLabels[i] = fmt.Sprintf("%.3g", ds.Axes[1][i])
	}

	data := make([]opts.HeatMapData, 0, len(ds.Cells))
	maxVal := 0.0
	for i := 0; i < res; i++ {
		for j := 0; j < res; j++ {
			v := value(i*res + j)
			if v > maxVal {
				maxVal = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, v}})
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("iteration=%d params=%s depth=%d", ds.Key.Iteration, ds.Key.Name(), ds.Depth),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: ds.Key.Params[0]}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: ds.Key.Params[1]}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxVal),
			InRange:    &opts.VisualMapInRange{Color: viewerRamp},
		}),
	)
	hm.AddSeries("cells", data)
	return hm
}

func implSeries(ds *projection.Dataset, o projection.Options) []opts.LineData {
	series := make([]opts.LineData, len(ds.Cells))
	for i, c := range ds.Cells {
		series[i] = opts.LineData{Value: clampImpl(c.MinImpl, ds.FirstCut, o.FullImplRange)}
	}
	return series
}

func depthSeries(ds *projection.Dataset) []opts.LineData {
	series := make([]opts.LineData, len(ds.Cells))
	for i, c := range ds.Cells {
		series[i] = opts.LineData{Value: c.FracPlausible}
	}
	return series
}

func lineChart(ds *projection.Dataset, title, yLabel string, series []opts.LineData) *charts.Line {
	xLabels := make([]string, len(ds.Axes[0]))
	for i, v := range ds.Axes[0] {
		xLabels[i] = fmt.Sprintf("%.3g", v)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("iteration=%d param=%s depth=%d", ds.Key.Iteration, ds.Key.Name(), ds.Depth),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Data: xLabels, Name: ds.Key.Params[0]}),
		charts.WithYAxisOpts(opts.YAxis{Name: yLabel}),
	)
	line.SetXAxis(xLabels).AddSeries(ds.Key.Name(), series)
	return line
}
