// Package logging centralizes slog construction and the structured field
// vocabulary shared by every pipeline stage. Console output is a compact
// human format with optional color; json format and a log-file fan-out are
// available for unattended runs.
package logging
