package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	gochart "github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"

	"lidoDigest/internal/model"
)

const (
	chartWidth  = 1024
	chartHeight = 512
	maxBars     = 12
)

// Point is one plotted value.
type Point struct {
	Label string
	Value float64
}

// Grapher renders dataset charts as PNG files into one directory per digest.
type Grapher struct {
	dir    string
	specs  map[string]Spec
	logger *zap.Logger
}

func NewGrapher(baseDir, endDate string, logger *zap.Logger) *Grapher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grapher{
		dir:    filepath.Join(baseDir, endDate),
		specs:  DefaultSpecs(),
		logger: logger,
	}
}

// ProcessAll renders every dataset that has a chart spec and returns the written paths.
// A dataset that cannot be drawn is logged and skipped.
func (g *Grapher) ProcessAll(datasets model.Datasets) ([]string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create graphs dir: %w", err)
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		spec, ok := g.specs[name]
		if !ok {
			continue
		}

		points, err := Points(datasets[name], spec)
		if err != nil {
			g.logger.Warn("chart data", zap.String("metric", name), zap.Error(err))
			continue
		}
		if len(points) < 2 {
			g.logger.Warn("not enough points to chart", zap.String("metric", name), zap.Int("points", len(points)))
			continue
		}

		path := filepath.Join(g.dir, name+".png")
		if err := render(path, spec, points); err != nil {
			g.logger.Warn("chart render", zap.String("metric", name), zap.Error(err))
			continue
		}
		g.logger.Debug("chart written", zap.String("metric", name), zap.String("path", path))
		paths = append(paths, path)
	}
	return paths, nil
}

// Points extracts the plotted values of a dataset according to spec.
func Points(ds model.Dataset, spec Spec) ([]Point, error) {
	excluded := make(map[string]struct{}, len(spec.Exclude))
	for _, label := range spec.Exclude {
		excluded[label] = struct{}{}
	}

	points := make([]Point, 0, len(ds))
	for i, row := range ds {
		label := fmt.Sprintf("%d", i)
		if spec.LabelColumn != "" {
			s, err := row.String(spec.LabelColumn)
			if err != nil {
				return nil, err
			}
			label = s
		}
		if _, skip := excluded[label]; skip {
			continue
		}
		value, err := row.Float(spec.ValueColumn)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Label: label, Value: value})
	}

	if spec.Reverse {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
	}
	if spec.Kind == KindBar && len(points) > maxBars {
		points = points[:maxBars]
	}
	return points, nil
}

func render(path string, spec Spec, points []Point) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer func() {
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	switch spec.Kind {
	case KindLine:
		return renderLine(file, spec, points)
	default:
		return renderBar(file, spec, points)
	}
}

func renderBar(file *os.File, spec Spec, points []Point) error {
	bars := make([]gochart.Value, 0, len(points))
	for _, p := range points {
		bars = append(bars, gochart.Value{Label: p.Label, Value: p.Value})
	}

	graph := gochart.BarChart{
		Title:        spec.Title,
		Background:   gochart.Style{Padding: gochart.Box{Top: 40}},
		Width:        chartWidth,
		Height:       chartHeight,
		BarWidth:     chartWidth / (2 * len(bars)),
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}
	return graph.Render(gochart.PNG, file)
}

func renderLine(file *os.File, spec Spec, points []Point) error {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
	}

	graph := gochart.Chart{
		Title:  spec.Title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    spec.ValueColumn,
				XValues: xs,
				YValues: ys,
			},
		},
	}
	return graph.Render(gochart.PNG, file)
}
