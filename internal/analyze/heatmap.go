package analyze

import "github.com/gitpulse/gitpulse/internal/models"

// DayLabels orders the heatmap rows Monday first; the store reports weekdays
// with 0 = Sunday.
var DayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// BlockLabels are the 8 fixed 3-hour blocks of the day.
var BlockLabels = [8]string{"00-03", "03-06", "06-09", "09-12", "12-15", "15-18", "18-21", "21-24"}

// HeatmapGrid is the zero-filled 7x8 bucket grid: Counts[day][block] with
// days ordered as DayLabels and blocks as BlockLabels.
type HeatmapGrid struct {
	Counts [7][8]int
}

// BuildGrid folds raw weekday/hour cells into the fixed grid. Buckets with no
// commits stay zero; cells outside the valid ranges are ignored.
func BuildGrid(cells []models.HeatmapCell) *HeatmapGrid {
	grid := &HeatmapGrid{}

	for _, cell := range cells {
		if cell.Weekday < 0 || cell.Weekday > 6 || cell.Hour < 0 || cell.Hour > 23 {
			continue
		}

		// Shift Sunday-first weekdays to the Monday-first row order.
		row := (cell.Weekday + 6) % 7
		block := cell.Hour / 3
		grid.Counts[row][block] += cell.Count
	}

	return grid
}

// Max returns the largest bucket value, used to scale the chart.
func (g *HeatmapGrid) Max() int {
	max := 0
	for row := range g.Counts {
		for block := range g.Counts[row] {
			if g.Counts[row][block] > max {
				max = g.Counts[row][block]
			}
		}
	}
	return max
}
