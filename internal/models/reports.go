package models

import "time"

// PersonCommitCount is one row of a top-authors or top-committers report.
// Identity collapses login, name and email into a single display value.
type PersonCommitCount struct {
	Identity    string `json:"identity"`
	CommitCount int    `json:"commit_count"`
}

// Streak is a maximal run of consecutive calendar days in which an author
// has at least one commit.
type Streak struct {
	Identity string    `json:"identity"`
	Start    time.Time `json:"streak_start"`
	End      time.Time `json:"streak_end"`
	Length   int       `json:"streak_length"`
}

// HeatmapCell is one raw bucket of the activity heatmap: commit count for a
// weekday (0 = Sunday, as the store reports it) at an hour of day.
type HeatmapCell struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Count   int `json:"count"`
}
