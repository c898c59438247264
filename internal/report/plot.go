// Package report renders the per-class accuracy-vs-degradation (IAPC)
// curves discovered by a run into a PNG for quick visual inspection.
package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/anthonynsimon/bild/imgio"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/perceptionbench/kneepoint/internal/results"
)

const (
	plotWidth  = 800
	plotHeight = 600
	margin     = 50
)

// Render draws one polyline per class over the unit square of
// (degradation factor, mAP), marks flagged knee rows, and writes the chart
// to path as PNG. An empty table is an error, not an empty image.
func Render(table *results.Table, path string) error {
	classes := table.Classes()
	if len(classes) == 0 {
		return fmt.Errorf("render curves: result table is empty")
	}

	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawAxes(img)

	palette := colorful.FastHappyPalette(len(classes))
	for i, class := range classes {
		r, g, b := palette[i].RGB255()
		drawClass(img, table.Class(class), color.RGBA{r, g, b, 255})
	}

	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save curve plot: %w", err)
	}
	return nil
}

// toPixel maps a (factor, metric) point in the unit square to image
// coordinates, Y inverted so larger metrics sit higher.
func toPixel(factor, metric float64) (int, int) {
	x := margin + int(factor*float64(plotWidth-2*margin))
	y := plotHeight - margin - int(metric*float64(plotHeight-2*margin))
	return x, y
}

func drawAxes(img *image.RGBA) {
	axis := color.RGBA{120, 120, 120, 255}
	for x := margin; x <= plotWidth-margin; x++ {
		img.Set(x, plotHeight-margin, axis)
	}
	for y := margin; y <= plotHeight-margin; y++ {
		img.Set(margin, y, axis)
	}

	// tick marks every 0.1 on both axes
	for i := 1; i <= 10; i++ {
		x, _ := toPixel(float64(i)/10, 0)
		for dy := 0; dy < 4; dy++ {
			img.Set(x, plotHeight-margin+dy, axis)
		}
		_, y := toPixel(0, float64(i)/10)
		for dx := 0; dx < 4; dx++ {
			img.Set(margin-dx, y, axis)
		}
	}
}

func drawClass(img *image.RGBA, rows []results.Record, c color.RGBA) {
	sorted := make([]results.Record, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DegradationFactor < sorted[j].DegradationFactor
	})

	for i := 1; i < len(sorted); i++ {
		x0, y0 := toPixel(sorted[i-1].DegradationFactor, clampUnit(sorted[i-1].MAP))
		x1, y1 := toPixel(sorted[i].DegradationFactor, clampUnit(sorted[i].MAP))
		drawLine(img, x0, y0, x1, y1, c)
	}
	for _, r := range sorted {
		x, y := toPixel(r.DegradationFactor, clampUnit(r.MAP))
		if r.Knee {
			drawMarker(img, x, y, 5, c)
		} else {
			drawMarker(img, x, y, 2, c)
		}
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// drawLine is a basic Bresenham segment.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawMarker(img *image.RGBA, cx, cy, half int, c color.RGBA) {
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			img.Set(x, y, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
