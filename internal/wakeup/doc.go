// Package wakeup shares "work is available" signals between notifyd
// processes over Redis pub/sub.
//
// Each process publishes its node id on a channel whenever a job becomes
// leasable locally and wakes its idle workers when another node publishes.
// Signals are coalesced: a burst of enqueues produces at most one message
// in flight. Losing a signal only delays work until the next idle poll.
package wakeup
