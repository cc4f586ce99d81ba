// Package preflight validates the environment before a pipeline run:
// directory access and external tool availability. Failed required
// checks abort the run before any mutation; optional ones only warn.
package preflight
