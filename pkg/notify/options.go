package notify

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/dmitrymomot/notifykit/pkg/deadletter"
	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

// Option is a functional option for configuring an Orchestrator
type Option func(*Orchestrator)

// WithGrouping enables grouping for the types that have a rule.
func WithGrouping(engine *grouping.Engine, rules map[string]grouping.Rule) Option {
	return func(o *Orchestrator) {
		o.grouping = engine
		maps.Copy(o.rules, rules)
	}
}

// WithGroupingRule adds or replaces the grouping rule for one type.
func WithGroupingRule(notificationType string, rule grouping.Rule) Option {
	return func(o *Orchestrator) {
		o.rules[notificationType] = rule
	}
}

// WithScheduler enables Schedule and CancelSchedule.
func WithScheduler(s *schedule.Scheduler) Option {
	return func(o *Orchestrator) {
		o.scheduler = s
	}
}

// WithDeadLetters enables ReplayDeadLetter and GetDeadLetterCount.
func WithDeadLetters(sink *deadletter.Sink) Option {
	return func(o *Orchestrator) {
		o.deadLetters = sink
	}
}

// WithPreferences filters channels through store before a job is built.
func WithPreferences(store PreferenceStore) Option {
	return func(o *Orchestrator) {
		o.prefs = store
	}
}

// WithRenderer renders requests that carry a template id.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		o.renderer = r
	}
}

// WithDefaultChannels is used for requests that name no channels.
func WithDefaultChannels(channels ...string) Option {
	return func(o *Orchestrator) {
		o.channels = slices.Clone(channels)
	}
}

// WithLogger sets a custom logger for the orchestrator
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}
