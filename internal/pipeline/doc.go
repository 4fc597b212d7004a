// Package pipeline runs one scheduled pass over the configured build targets.
//
// Each target moves strictly through resolve, acquire, execute, reconcile,
// record and notify; a stage starts only after the previous one finished.
// A failing target aborts only itself. Artifacts that were built but could
// not be recorded are queued and recorded at the start of the next run.
package pipeline
