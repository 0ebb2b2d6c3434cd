// Package checkpoint persists crawl state so a run can resume after
// interruption without repeating or corrupting work.
//
// Two record kinds live under the state directory: one JSON checkpoint per
// work item (internal/checkpoint/<id>.json) and a single progress.json
// session record. Every mutation rewrites the full record via a temp file
// and rename, so readers never observe a partial write. The Store also owns
// the work-item state machine: stage transitions and sub-item flag updates
// go through its Mark/SetStage operations, which recompute statistics from
// the sub-item flags on every call and persist before returning.
package checkpoint
