package analyze

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

const topLimit = 5

// Analyzer runs the read-only reports against the stored schema and writes
// tabular and chart artifacts into the output directory. It never mutates
// the store.
type Analyzer struct {
	db        models.Database
	outputDir string
}

func New(db models.Database, outputDir string) *Analyzer {
	return &Analyzer{
		db:        db,
		outputDir: outputDir,
	}
}

// RunAll runs every analysis in order, stopping at the first failure.
func (a *Analyzer) RunAll(ctx context.Context) error {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Failed to create output directory",
			fmt.Sprintf("Could not create %q", a.outputDir),
			err,
			errors.LevelError,
		)
	}

	logger.Info("Running all analyses")

	if _, err := a.TopAuthors(ctx); err != nil {
		return err
	}
	if _, err := a.TopCommitters(ctx); err != nil {
		return err
	}
	if _, err := a.LongestStreak(ctx); err != nil {
		return err
	}
	if _, err := a.Heatmap(ctx); err != nil {
		return err
	}

	logger.Info("All analyses completed")
	return nil
}

// TopAuthors reports the top 5 people by commit count grouped by authoring
// identity.
func (a *Analyzer) TopAuthors(ctx context.Context) ([]models.PersonCommitCount, error) {
	logger.Info("Analyzing top %d authors by commit count", topLimit)

	rows, err := a.db.GetTopAuthors(ctx, topLimit)
	if err != nil {
		return nil, err
	}

	if err := a.writeCommitCountsCSV("top_authors.csv", "author", rows); err != nil {
		return nil, err
	}

	if err := a.renderCommitCountsChart("top_authors.html", "Top 5 Authors by Commit Count", rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// TopCommitters is the same aggregation keyed by committing identity.
func (a *Analyzer) TopCommitters(ctx context.Context) ([]models.PersonCommitCount, error) {
	logger.Info("Analyzing top %d committers by commit count", topLimit)

	rows, err := a.db.GetTopCommitters(ctx, topLimit)
	if err != nil {
		return nil, err
	}

	if err := a.writeCommitCountsCSV("top_committers.csv", "committer", rows); err != nil {
		return nil, err
	}

	if err := a.renderCommitCountsChart("top_committers.html", "Top 5 Committers by Commit Count", rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// LongestStreak reports the single longest run of consecutive authored days
// across all authors. Returns nil without error when the store holds no
// streaks at all.
func (a *Analyzer) LongestStreak(ctx context.Context) (*models.Streak, error) {
	logger.Info("Analyzing author with longest commit streak")

	streak, err := a.db.GetLongestStreak(ctx)
	if err != nil {
		return nil, err
	}

	if streak == nil {
		logger.Warn("No commit streaks found")
		return nil, nil
	}

	record := [][]string{
		{"author", "streak_start", "streak_end", "streak_length"},
		{
			streak.Identity,
			streak.Start.Format("2006-01-02"),
			streak.End.Format("2006-01-02"),
			strconv.Itoa(streak.Length),
		},
	}
	if err := a.writeCSV("longest_author_streak.csv", record); err != nil {
		return nil, err
	}

	logger.Info("Longest streak: %s with %d consecutive days", streak.Identity, streak.Length)
	return streak, nil
}

// Heatmap buckets commit counts by day of week and 3-hour block of day.
// The produced grid is always exactly 7 day rows by 8 time blocks.
func (a *Analyzer) Heatmap(ctx context.Context) (*HeatmapGrid, error) {
	logger.Info("Generating commit heatmap by day of week and time of day")

	cells, err := a.db.GetHeatmapCounts(ctx)
	if err != nil {
		return nil, err
	}

	grid := BuildGrid(cells)

	records := [][]string{append([]string{"day"}, BlockLabels[:]...)}
	for row, day := range DayLabels {
		record := []string{day}
		for block := range BlockLabels {
			record = append(record, strconv.Itoa(grid.Counts[row][block]))
		}
		records = append(records, record)
	}
	if err := a.writeCSV("commit_heatmap.csv", records); err != nil {
		return nil, err
	}

	if err := a.renderHeatmapChart("commit_heatmap.html", grid); err != nil {
		return nil, err
	}

	return grid, nil
}

func (a *Analyzer) writeCommitCountsCSV(name, identityColumn string, rows []models.PersonCommitCount) error {
	records := [][]string{{identityColumn, "commit_count"}}
	for _, row := range rows {
		records = append(records, []string{row.Identity, strconv.Itoa(row.CommitCount)})
	}
	return a.writeCSV(name, records)
}

func (a *Analyzer) writeCSV(name string, records [][]string) error {
	path := filepath.Join(a.outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Failed to create report file",
			fmt.Sprintf("Could not create %q", path),
			err,
			errors.LevelError,
		)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Failed to write report file",
			fmt.Sprintf("Could not write %q", path),
			err,
			errors.LevelError,
		)
	}

	logger.Info("Report saved to %s", path)
	return nil
}
