// Package report derives read-only crawl summaries from the persisted
// session record. It never mutates state, so any presentation layer can
// consume it.
package report

import (
	"sort"

	"voxcrawl/internal/checkpoint"
)

// Summary is a point-in-time view of the session's progress.
type Summary struct {
	SessionID  string   `json:"session_id"`
	Total      int      `json:"total"`
	Completed  int      `json:"completed"`
	Failed     int      `json:"failed"`
	Pending    int      `json:"pending"`
	InProgress string   `json:"in_progress,omitempty"`
	Percentage float64  `json:"percentage"`
	FailedIDs  []string `json:"failed_ids,omitempty"`
}

// ItemStatus is one row of a detailed breakdown.
type ItemStatus struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

// Summarize computes a Summary from a session record. Percentage is 0 when
// the session has no items.
func Summarize(progress *checkpoint.SessionProgress) Summary {
	summary := Summary{}
	if progress == nil {
		return summary
	}

	summary.SessionID = progress.SessionID
	summary.Total = len(progress.Items)
	summary.InProgress = progress.InProgress
	summary.FailedIDs = append([]string(nil), progress.FailedItems...)

	for _, stage := range progress.Items {
		switch checkpoint.Stage(stage) {
		case checkpoint.StageCompleted:
			summary.Completed++
		case checkpoint.StageFailed:
			summary.Failed++
		case checkpoint.StagePending:
			summary.Pending++
		}
	}
	if summary.Total > 0 {
		summary.Percentage = float64(summary.Completed) / float64(summary.Total) * 100
	}
	return summary
}

// Breakdown returns the per-item stages sorted by id.
func Breakdown(progress *checkpoint.SessionProgress) []ItemStatus {
	if progress == nil {
		return nil
	}
	rows := make([]ItemStatus, 0, len(progress.Items))
	for id, stage := range progress.Items {
		rows = append(rows, ItemStatus{ID: id, Stage: stage})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}
