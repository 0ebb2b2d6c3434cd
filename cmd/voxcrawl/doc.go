// Package main hosts the voxcrawl CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the crawl lifecycle: starting and
// resuming checkpointed crawls, inspecting session progress, reopening
// failed champions, clearing state, and maintaining the champion catalog
// cache. It centralizes configuration resolution, structured logging setup,
// and the two-signal interrupt contract so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
