// Package debugviz renders extraction results for inspection: PNG images
// through gonum/plot and an interactive HTML scatter through go-echarts.
package debugviz

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/tabletop/internal/fsutil"
	"github.com/banshee-data/tabletop/internal/perception"
)

var (
	imageWidth  = 8 * vg.Inch
	imageHeight = 8 * vg.Inch
	grey        = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// RenderLabelsPNG draws a row-major label image as a scatter of pixels,
// one colour per non-zero label, with row 0 at the top.
func RenderLabelsPNG(fsys fsutil.FileSystem, path string, rows, cols int, labels []int, title string) error {
	if len(labels) != rows*cols {
		return fmt.Errorf("label image has %d cells, want %d×%d", len(labels), rows, cols)
	}

	byLabel := map[int]plotter.XYs{}
	for i, l := range labels {
		if l == 0 {
			continue
		}
		r, c := i/cols, i%cols
		byLabel[l] = append(byLabel[l], plotter.XY{X: float64(c), Y: float64(-r)})
	}
	ids := make([]int, 0, len(byLabel))
	for l := range byLabel {
		ids = append(ids, l)
	}
	sort.Ints(ids)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "-Row"
	p.X.Min, p.X.Max = 0, float64(cols)
	p.Y.Min, p.Y.Max = -float64(rows), 0

	colors := Palette(len(ids))
	for i, l := range ids {
		s, err := plotter.NewScatter(byLabel[l])
		if err != nil {
			return fmt.Errorf("label %d scatter: %w", l, err)
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%d", l), s)
	}
	p.Legend.Top = true

	return savePNG(fsys, path, p)
}

// RenderTopDownPNG draws the result in the XY plane: plane inliers in grey,
// hull outlines and object points in per-element colours, and object
// centroids as crosses.
func RenderTopDownPNG(fsys fsutil.FileSystem, path string, res *perception.Result) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top-down: %d planes, %d objects", len(res.Planes), len(res.Objects))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	planeColors := Palette(len(res.Planes))
	for i, seg := range res.Planes {
		if len(seg.Points) > 0 {
			pts := make(plotter.XYs, len(seg.Points))
			for j, pt := range seg.Points {
				pts[j] = plotter.XY{X: pt.X, Y: pt.Y}
			}
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("plane %d inliers: %w", i, err)
			}
			s.GlyphStyle.Color = grey
			s.GlyphStyle.Radius = vg.Points(0.5)
			p.Add(s)
		}

		ring := seg.Hull.Ring()
		if len(ring) < 2 {
			continue
		}
		outline := make(plotter.XYs, len(ring))
		for j, v := range ring {
			outline[j] = plotter.XY{X: v[0], Y: v[1]}
		}
		l, err := plotter.NewLine(outline)
		if err != nil {
			return fmt.Errorf("plane %d hull: %w", i, err)
		}
		l.Color = planeColors[i]
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("plane %d (z=%.3f)", i+1, seg.Plane.Point.Z), l)
	}

	objectColors := Palette(len(res.Objects))
	centroids := make(plotter.XYs, 0, len(res.Objects))
	for i, obj := range res.Objects {
		pts := make(plotter.XYs, len(obj.XY))
		for j, xy := range obj.XY {
			pts[j] = plotter.XY{X: xy[0], Y: xy[1]}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("object %d points: %w", i, err)
		}
		s.GlyphStyle.Color = objectColors[i]
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("object %d (h=%.3f)", i+1, obj.Height), s)
		centroids = append(centroids, plotter.XY{X: obj.Centroid.X, Y: obj.Centroid.Y})
	}
	if len(centroids) > 0 {
		s, err := plotter.NewScatter(centroids)
		if err != nil {
			return fmt.Errorf("centroids: %w", err)
		}
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
	}
	p.Legend.Top = true

	return savePNG(fsys, path, p)
}

// RenderAll writes the standard set of debug files into dir. Label images
// are only available when the result carries debug images.
func RenderAll(fsys fsutil.FileSystem, dir string, rows, cols int, res *perception.Result) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	var written []string
	if res.Debug != nil {
		planes := filepath.Join(dir, "plane_labels.png")
		if err := RenderLabelsPNG(fsys, planes, rows, cols, res.Debug.PlaneLabels, "Plane inliers"); err != nil {
			return written, err
		}
		objects := filepath.Join(dir, "object_labels.png")
		if err := RenderLabelsPNG(fsys, objects, rows, cols, res.Debug.ObjectLabels, "Objects"); err != nil {
			return written, err
		}
		candidates := filepath.Join(dir, "candidates.png")
		if err := RenderLabelsPNG(fsys, candidates, rows, cols, maskLabels(res.Debug.Candidates.Bits), "Horizontal candidates"); err != nil {
			return written, err
		}
		written = append(written, planes, objects, candidates)
	}

	topDown := filepath.Join(dir, "topdown.png")
	if err := RenderTopDownPNG(fsys, topDown, res); err != nil {
		return written, err
	}
	written = append(written, topDown)

	htmlPath := filepath.Join(dir, "scatter.html")
	f, err := fsys.Create(htmlPath)
	if err != nil {
		return written, fmt.Errorf("create %s: %w", htmlPath, err)
	}
	if err := WriteScatterHTML(f, res); err != nil {
		f.Close()
		return written, err
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", htmlPath, err)
	}
	return append(written, htmlPath), nil
}

func maskLabels(bits []bool) []int {
	labels := make([]int, len(bits))
	for i, b := range bits {
		if b {
			labels[i] = 1
		}
	}
	return labels
}

func savePNG(fsys fsutil.FileSystem, path string, p *plot.Plot) error {
	wt, err := p.WriterTo(imageWidth, imageHeight, "png")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
