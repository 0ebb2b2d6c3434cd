// Package textutil provides text processing utilities for champion
// identifiers, transcript cleanup, and filename sanitization.
//
// The primary use cases are:
//   - Deriving stable lowercase champion ids from display names
//   - Extracting quoted dialogue from raw wiki transcript text
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
