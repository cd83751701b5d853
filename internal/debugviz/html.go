package debugviz

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tabletop/internal/perception"
)

// maxSeriesPoints caps the points sent per series; larger planes are strided.
const maxSeriesPoints = 4000

// WriteScatterHTML renders an interactive XY scatter with one series per
// plane and per object. Values carry z as a third component for the tooltip.
func WriteScatterHTML(w io.Writer, res *perception.Result) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tabletop extraction", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tabletop extraction", Subtitle: fmt.Sprintf("planes=%d objects=%d", len(res.Planes), len(res.Objects))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	planeColors := Palette(len(res.Planes))
	for i, seg := range res.Planes {
		stride := len(seg.Points)/maxSeriesPoints + 1
		data := make([]opts.ScatterData, 0, len(seg.Points)/stride+1)
		for j := 0; j < len(seg.Points); j += stride {
			p := seg.Points[j]
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
		}
		scatter.AddSeries(fmt.Sprintf("plane %d", i+1), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(planeColors[i])}),
		)
	}

	objectColors := Palette(len(res.Objects))
	for i, obj := range res.Objects {
		data := make([]opts.ScatterData, 0, len(obj.Points))
		for _, p := range obj.Points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
		}
		scatter.AddSeries(fmt.Sprintf("object %d", i+1), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(objectColors[i])}),
		)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	return nil
}
