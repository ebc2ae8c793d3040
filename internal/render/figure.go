// Package render produces figure artifacts for projection datasets: static
// PNG figures via gonum/plot and an interactive HTML view via go-echarts.
package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/prism-data/prism/internal/param"
	"github.com/prism-data/prism/internal/projection"
)

// Renderer writes projection figures into an output directory.
type Renderer struct {
	space     *param.Space
	outputDir string
}

func NewRenderer(space *param.Space, outputDir string) *Renderer {
	return &Renderer{space: space, outputDir: outputDir}
}

// FigureName returns the artifact filename for a projection key.
func FigureName(key projection.Key) string {
	if key.Type == projection.Type3D {
		return fmt.Sprintf("proj_%d_hcube_(%s).png", key.Iteration, key.Name())
	}
	return fmt.Sprintf("proj_%d_cube_(%s).png", key.Iteration, key.Name())
}

// Render writes the figure for a dataset and returns the file path. The
// figure has two panels, minimum implausibility and line-of-sight depth,
// stacked per the alignment option: "col" stacks them vertically, "row" puts
// them side by side.
func (r *Renderer) Render(ds *projection.Dataset, opts projection.Options) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	var implPanel, depthPanel *plot.Plot
	var err error
	switch ds.Key.Type {
	case projection.Type2D:
		implPanel, depthPanel, err = r.panels2D(ds, opts)
	case projection.Type3D:
		implPanel, depthPanel, err = r.panels3D(ds, opts)
	default:
		return "", fmt.Errorf("cannot render projection type %q", ds.Key.Type)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.outputDir, FigureName(ds.Key))
	if err := savePanels(implPanel, depthPanel, opts.Align, path); err != nil {
		return "", err
	}
	return path, nil
}

// panels2D builds the two line-plot panels of a single-parameter projection.
func (r *Renderer) panels2D(ds *projection.Dataset, opts projection.Options) (*plot.Plot, *plot.Plot, error) {
	name := ds.Key.Params[0]
	axis := ds.Axes[0]

	implPts := make(plotter.XYs, len(ds.Cells))
	depthPts := make(plotter.XYs, len(ds.Cells))
	for i, c := range ds.Cells {
		implPts[i] = plotter.XY{X: axis[i], Y: clampImpl(c.MinImpl, ds.FirstCut, opts.FullImplRange)}
		depthPts[i] = plotter.XY{X: axis[i], Y: c.FracPlausible}
	}

	pImpl := plot.New()
	pImpl.Title.Text = fmt.Sprintf("Minimum implausibility (iteration %d)", ds.Key.Iteration)
	pImpl.X.Label.Text = name
	pImpl.Y.Label.Text = "I_min"

	implLine, err := plotter.NewLine(implPts)
	if err != nil {
		return nil, nil, fmt.Errorf("impl line: %w", err)
	}
	implLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	implLine.Width = vg.Points(1.5)
	pImpl.Add(implLine)

	if opts.ShowCuts {
		cutLine := horizontalLine(axis[0], axis[len(axis)-1], ds.FirstCut)
		cutLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		cutLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		pImpl.Add(cutLine)
		pImpl.Legend.Add("cut-off", cutLine)
	}

	pDepth := plot.New()
	pDepth.Title.Text = "Line-of-sight depth"
	pDepth.X.Label.Text = name
	pDepth.Y.Label.Text = "fraction plausible"
	pDepth.Y.Min = 0
	pDepth.Y.Max = 1

	depthLine, err := plotter.NewLine(depthPts)
	if err != nil {
		return nil, nil, fmt.Errorf("depth line: %w", err)
	}
	depthLine.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	depthLine.Width = vg.Points(1.5)
	pDepth.Add(depthLine)

	if est, err := r.space.Estimate(name); err == nil && est != nil {
		implTop := ds.FirstCut
		if opts.FullImplRange {
			for _, c := range ds.Cells {
				if c.MinImpl > implTop {
					implTop = c.MinImpl
				}
			}
		}
		for _, panel := range []struct {
			p   *plot.Plot
			top float64
		}{{pImpl, implTop}, {pDepth, 1}} {
			marker := verticalLine(*est, 0, panel.top)
			marker.Color = color.Gray{Y: 80}
			marker.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			panel.p.Add(marker)
		}
	}

	if opts.UseParSpace {
		if lo, hi, err := r.space.Bounds(name); err == nil {
			pImpl.X.Min, pImpl.X.Max = lo, hi
			pDepth.X.Min, pDepth.X.Max = lo, hi
		}
	}
	return pImpl, pDepth, nil
}

// panels3D builds the two heatmap panels of a parameter-pair projection.
func (r *Renderer) panels3D(ds *projection.Dataset, opts projection.Options) (*plot.Plot, *plot.Plot, error) {
	res := ds.Resolution
	pal := moreland.SmoothBlueRed().Palette(255)

	implGrid := cellGrid{
		x: ds.Axes[0], y: ds.Axes[1],
		at: func(c, row int) float64 {
			return clampImpl(ds.Cells[c*res+row].MinImpl, ds.FirstCut, opts.FullImplRange)
		},
	}
	depthGrid := cellGrid{
		x: ds.Axes[0], y: ds.Axes[1],
		at: func(c, row int) float64 { return ds.Cells[c*res+row].FracPlausible },
	}

	pImpl := plot.New()
	pImpl.Title.Text = fmt.Sprintf("Minimum implausibility (iteration %d)", ds.Key.Iteration)
	pImpl.X.Label.Text = ds.Key.Params[0]
	pImpl.Y.Label.Text = ds.Key.Params[1]
	implMap := plotter.NewHeatMap(implGrid, pal)
	implMap.Min = 0
	if !opts.FullImplRange {
		implMap.Max = ds.FirstCut
	}
	pImpl.Add(implMap)

	pDepth := plot.New()
	pDepth.Title.Text = "Line-of-sight depth"
	pDepth.X.Label.Text = ds.Key.Params[0]
	pDepth.Y.Label.Text = ds.Key.Params[1]
	depthMap := plotter.NewHeatMap(depthGrid, pal)
	depthMap.Min = 0
	depthMap.Max = 1
	pDepth.Add(depthMap)

	if opts.UseParSpace {
		for _, p := range []*plot.Plot{pImpl, pDepth} {
			if lo, hi, err := r.space.Bounds(ds.Key.Params[0]); err == nil {
				p.X.Min, p.X.Max = lo, hi
			}
			if lo, hi, err := r.space.Bounds(ds.Key.Params[1]); err == nil {
				p.Y.Min, p.Y.Max = lo, hi
			}
		}
	}
	return pImpl, pDepth, nil
}

// savePanels tiles the two panels per the alignment and writes a PNG.
func savePanels(implPanel, depthPanel *plot.Plot, align projection.Alignment, path string) error {
	rows, cols := 2, 1
	width, height := 7*vg.Inch, 9*vg.Inch
	if align == projection.AlignRow {
		rows, cols = 1, 2
		width, height = 13*vg.Inch, 5*vg.Inch
	}

	plots := make([][]*plot.Plot, rows)
	if align == projection.AlignRow {
		plots[0] = []*plot.Plot{implPanel, depthPanel}
	} else {
		plots[0] = []*plot.Plot{implPanel}
		plots[1] = []*plot.Plot{depthPanel}
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			if plots[i][j] != nil {
				plots[i][j].Draw(canvases[i][j])
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create figure file: %w", err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("write figure: %w", err)
	}
	return nil
}

// horizontalLine builds a guide line at height y spanning [x0, x1].
func horizontalLine(x0, x1, y float64) *plotter.Line {
	l, _ := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	return l
}

// verticalLine builds a guide line at x spanning [y0, y1].
func verticalLine(x, y0, y1 float64) *plotter.Line {
	l, _ := plotter.NewLine(plotter.XYs{{X: x, Y: y0}, {X: x, Y: y1}})
	return l
}

// clampImpl caps implausibility values at the first cut-off so the colour and
// value range stays readable; values above the cut are all equally ruled out.
func clampImpl(v, firstCut float64, fullRange bool) float64 {
	if v < 0 {
		return 0
	}
	if !fullRange && v > firstCut {
		return firstCut
	}
	return v
}

// cellGrid adapts a dataset's cells to plotter.GridXYZ. Cells are stored
// row-major with the first plotted parameter as the outer index.
type cellGrid struct {
	x, y []float64
	at   func(c, r int) float64
}

func (g cellGrid) Dims() (c, r int)   { return len(g.x), len(g.y) }
func (g cellGrid) X(c int) float64    { return g.x[c] }
func (g cellGrid) Y(r int) float64    { return g.y[r] }
func (g cellGrid) Z(c, r int) float64 { return g.at(c, r) }
