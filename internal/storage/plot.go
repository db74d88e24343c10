package storage

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/RMahshie/nanosynth/pkg/models"
)

// Plotter renders a spectrum to an image file
type Plotter interface {
	Plot(path, title, yLabel string, s models.Spectrum) error
}

// PNGPlotter renders line plots with gonum/plot
type PNGPlotter struct {
	Width  vg.Length
	Height vg.Length
}

// NewPNGPlotter returns a 6x4 inch plotter
func NewPNGPlotter() *PNGPlotter {
	return &PNGPlotter{Width: 6 * vg.Inch, Height: 4 * vg.Inch}
}

// Plot draws wavelength against value. Pixels with NaN or infinite values are
// left out of the line.
func (p *PNGPlotter) Plot(path, title, yLabel string, s models.Spectrum) error {
	pts := finitePoints(s)
	if len(pts) == 0 {
		return fmt.Errorf("%w: %s has no finite points to plot", ErrSave, title)
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "Wavelength (nm)"
	pl.Y.Label.Text = yLabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build plot line: %w", err)
	}
	pl.Add(plotter.NewGrid(), line)

	if err := pl.Save(p.Width, p.Height, path); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

func finitePoints(s models.Spectrum) plotter.XYs {
	n := len(s.Values)
	if len(s.Wavelengths) < n {
		n = len(s.Wavelengths)
	}
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x, y := s.Wavelengths[i], s.Values[i]
		if math.IsNaN(y) || math.IsInf(y, 0) || math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}
