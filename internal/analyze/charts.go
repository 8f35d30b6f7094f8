package analyze

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

func (a *Analyzer) renderCommitCountsChart(name, title string, rows []models.PersonCommitCount) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Number of Commits"}),
	)

	identities := make([]string, 0, len(rows))
	values := make([]opts.BarData, 0, len(rows))
	for _, row := range rows {
		identities = append(identities, row.Identity)
		values = append(values, opts.BarData{Value: row.CommitCount})
	}

	bar.SetXAxis(identities).AddSeries("commits", values)

	return a.renderChart(name, bar.Render)
}

func (a *Analyzer) renderHeatmapChart(name string, grid *HeatmapGrid) error {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Commit Frequency by Day of Week and Time of Day"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Time of Day (hours)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: DayLabels[:], Name: "Day of Week"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(grid.Max()),
		}),
	)

	values := make([]opts.HeatMapData, 0, len(DayLabels)*len(BlockLabels))
	for day := range DayLabels {
		for block := range BlockLabels {
			values = append(values, opts.HeatMapData{
				Value: [3]interface{}{block, day, grid.Counts[day][block]},
			})
		}
	}

	hm.SetXAxis(BlockLabels[:]).AddSeries("commits", values)

	return a.renderChart(name, hm.Render)
}

func (a *Analyzer) renderChart(name string, render func(w io.Writer) error) error {
	path := filepath.Join(a.outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Failed to create chart file",
			fmt.Sprintf("Could not create %q", path),
			err,
			errors.LevelError,
		)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Failed to render chart",
			fmt.Sprintf("Could not render %q", path),
			err,
			errors.LevelError,
		)
	}

	logger.Info("Chart saved to %s", path)
	return nil
}
