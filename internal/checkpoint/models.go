package checkpoint

import (
	"sort"
	"strings"
	"time"
)

// Stage represents the lifecycle of a work item.
type Stage string

const (
	StagePending       Stage = "pending"
	StageScraping      Stage = "scraping"
	StageDownloading   Stage = "downloading"
	StageProcessing    Stage = "processing"
	StageConcatenating Stage = "concatenating"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

var allStages = []Stage{
	StagePending,
	StageScraping,
	StageDownloading,
	StageProcessing,
	StageConcatenating,
	StageCompleted,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// Terminal reports whether the stage admits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// SubItem is one audio file belonging to a work item.
type SubItem struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Transcript  string `json:"transcript,omitempty"`
	Fetched     bool   `json:"fetched"`
	Transformed bool   `json:"transformed"`
	Size        int64  `json:"size,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Stats holds counts derived from the sub-item flags. The counts are
// recomputed from the flags on every mutation, never incremented, so a
// repeated mark operation cannot drift them.
type Stats struct {
	Total       int `json:"total"`
	Fetched     int `json:"fetched"`
	Transformed int `json:"transformed"`
	Failed      int `json:"failed"`
}

// WorkItem is one champion processed end-to-end through the pipeline.
type WorkItem struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Stage          Stage     `json:"stage"`
	Files          []SubItem `json:"files"`
	Stats          Stats     `json:"stats"`
	LastCheckpoint time.Time `json:"last_checkpoint"`
	Error          string    `json:"error,omitempty"`
}

// RecomputeStats rederives the counters from the sub-item flags.
func (w *WorkItem) RecomputeStats() {
	stats := Stats{Total: len(w.Files)}
	for i := range w.Files {
		if w.Files[i].Fetched {
			stats.Fetched++
		}
		if w.Files[i].Transformed {
			stats.Transformed++
		}
		if w.Files[i].Error != "" {
			stats.Failed++
		}
	}
	w.Stats = stats
}

// SubItem returns the sub-item with the given filename, or nil.
func (w *WorkItem) SubItem(filename string) *SubItem {
	for i := range w.Files {
		if w.Files[i].Filename == filename {
			return &w.Files[i]
		}
	}
	return nil
}

// Terminal reports whether the item reached a terminal stage.
func (w *WorkItem) Terminal() bool {
	return w.Stage.Terminal()
}

// SessionProgress is the process-wide crawl record. Items maps work-item id
// to its coarse stage string; InProgress holds at most one id.
type SessionProgress struct {
	SessionID      string            `json:"session_id"`
	StartTime      time.Time         `json:"start_time"`
	LastUpdate     time.Time         `json:"last_update"`
	TotalItems     int               `json:"total_items"`
	CompletedItems int               `json:"completed_items"`
	FailedItems    []string          `json:"failed_items"`
	InProgress     string            `json:"in_progress,omitempty"`
	Items          map[string]string `json:"items"`
}

func (p *SessionProgress) recount() {
	p.TotalItems = len(p.Items)
	p.CompletedItems = 0
	failed := p.FailedItems[:0]
	for id, stage := range p.Items {
		switch Stage(stage) {
		case StageCompleted:
			p.CompletedItems++
		case StageFailed:
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	p.FailedItems = failed
}
