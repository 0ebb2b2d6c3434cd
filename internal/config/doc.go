// Package config loads, normalizes, and validates voxcrawl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and keeps every knob the crawler CLI needs in
// one place: state and output directories, wiki source settings, audio
// processing parameters, and workflow thresholds.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
