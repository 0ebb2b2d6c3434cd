// Package pipeline drives work items through their staged lifecycle.
//
// The orchestrator owns stage sequencing, the success-ratio gates that
// decide between advancing and failing an item, resume after interruption,
// and the cooperative shutdown contract. Actual work happens in the stage
// handlers it is configured with; the orchestrator only evaluates their
// outcomes against the persisted checkpoint state.
//
// Items are processed strictly one at a time, in caller-supplied order.
// One item's failure is recorded on its checkpoint and never prevents the
// next item from being attempted.
package pipeline
