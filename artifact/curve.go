package artifact

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// PlotLossCurve draws the per-iteration loss and saves it to path. The image
// format follows the extension of path.
func PlotLossCurve(path, title string, loss []float64) error {
	if len(loss) == 0 {
		return scerr.New("no loss values to plot")
	}

	pts := make(plotter.XYs, len(loss))
	for i, v := range loss {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "weighted mean NLL"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return scerr.Wrap(err, "failed to build loss curve")
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	line.Width = vg.Points(1.2)
	p.Add(line)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return scerr.NewOutputUnwritableError(path, err)
	}
	return nil
}
