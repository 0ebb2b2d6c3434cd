// Package logging wires log/slog for the crawler.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for machine consumption. Helpers mirror the slog attribute
// constructors so call sites stay terse, and WithContext derives standard
// fields (item id, stage, correlation id) from a request context.
package logging
