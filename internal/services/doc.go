// Package services defines shared utilities consumed by the pipeline stages
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and item paths
//     for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (io, tool, timeout, conflict, missing data) uniform
//     across stages.
package services
