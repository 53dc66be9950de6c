// Package notify is the front door of the notification core.
//
// An Orchestrator accepts a Request, drops the channels the user opted out
// of, renders the template and either enqueues the resulting job or, when
// the notification type has a grouping rule, offers it to the grouping
// engine so bursts collapse into one digest. Critical requests always skip
// grouping. Requests with NotBefore land in the scheduled state; Schedule
// registers recurring and timezone-aware sends with the scheduler.
//
//	orch, err := notify.New(q,
//		notify.WithGrouping(engine, map[string]grouping.Rule{
//			"comment_added": {Window: 5 * time.Minute, Dimension: "post_id"},
//		}),
//		notify.WithScheduler(scheduler),
//		notify.WithDeadLetters(sink),
//		notify.WithPreferences(prefs),
//		notify.WithRenderer(notify.NewTemplateRenderer(templates, 0)),
//	)
//
//	id, err := orch.Submit(ctx, notify.Request{
//		UserID:     "u1",
//		Type:       "comment_added",
//		Channels:   []string{"email", "inbox"},
//		TemplateID: "comment_added",
//		Vars:       map[string]any{"author": "Ann"},
//	})
//
// GetJobStatus, ReplayDeadLetter, GetQueueDepth and GetDeadLetterCount
// expose the state of the pipeline to operators.
package notify
