// Package schedule converts recurring and one-shot schedule specs into queue
// jobs at the right wall-clock moment.
//
// Cron expressions use the classic five fields (minute hour day-of-month
// month day-of-week) and are evaluated in the spec's IANA timezone.
// ComputeNextFire is a pure function: it takes a spec and an instant and
// returns the next fire time in UTC, skipping weekends and holidays when the
// spec asks for it. A job scheduled for 09:00 local keeps firing at 09:00
// across daylight saving changes.
//
// The Scheduler drives materialization. Each tick loads due specs from a
// Repository and enqueues one job per occurrence. Job ids are derived from
// the spec id and fire time, and specs are updated with a version check, so
// any number of processes can tick the same repository:
//
//	sched, err := schedule.New(repo, q,
//		schedule.WithCalendar(calendar),
//		schedule.WithCheckInterval(time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//	g.Go(sched.Run(ctx))
package schedule
