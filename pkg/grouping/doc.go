// Package grouping merges notifications of the same user and type that
// arrive within a time window into a single digest job.
//
// Offer routes a candidate through a Rule. Critical candidates bypass
// grouping. Otherwise the candidate joins the open window for its group key
// or opens a new one. When the window ends it is flushed exactly once: the
// open -> flushing transition is a compare-and-set in the Store, and only the
// winner enqueues the digest. A window holding a single candidate enqueues
// that candidate unchanged.
//
// Flushes are driven by per-window timers and by Sweep, which also recovers
// windows whose timers were lost with a crashed process.
package grouping
