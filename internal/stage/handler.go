// Package stage defines the contract between the pipeline orchestrator and
// the stage executors that do the actual scraping, fetching, converting, and
// assembling.
package stage

import (
	"context"

	"voxcrawl/internal/checkpoint"
)

// Handler describes the contract the orchestrator needs from each stage.
// Execute reports per-sub-item outcomes into the work item through the
// checkpoint store; it returns an error only for whole-item conditions.
type Handler interface {
	Prepare(context.Context, *checkpoint.WorkItem) error
	Execute(context.Context, *checkpoint.WorkItem) error
	HealthCheck(context.Context) Health
}
