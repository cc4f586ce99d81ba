// Package namer derives canonical directory and file names from aggregated
// tags and performs conflict-safe renames. Directory names come from a
// majority vote over member album tags; file names from track number and the
// original title part. Exact duplicates discovered during file renaming are
// collapsed to one copy; differing content is never overwritten or deleted.
package namer
