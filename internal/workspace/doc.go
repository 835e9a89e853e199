// Package workspace manages per-request scratch directories.
//
// Every transformation opens exactly one Workspace, writes its inputs and
// intermediates under it, and disposes it once the result has been delivered
// (or immediately on failure). A Sweeper removes directories orphaned by a
// crash.
package workspace
