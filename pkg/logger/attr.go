package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// An empty id returns an empty Attr.
func UserID(id string) slog.Attr {
	return optional("user_id", id)
}

// JobID records the notification job identifier under the key "job_id".
func JobID(id string) slog.Attr {
	return optional("job_id", id)
}

// WorkerID records the dispatch worker identifier under the key "worker_id".
func WorkerID(id string) slog.Attr {
	return optional("worker_id", id)
}

// SpecID records the schedule spec identifier under the key "spec_id".
func SpecID(id string) slog.Attr {
	return optional("spec_id", id)
}

// GroupKey records the grouping key under the key "group_key".
func GroupKey(key string) slog.Attr {
	return optional("group_key", key)
}

// Channel records the delivery channel under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Priority records a job priority under the key "priority".
func Priority(p int) slog.Attr {
	return slog.Int("priority", p)
}

// Attempt records the delivery attempt under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Outcome records an ack outcome under the key "outcome".
func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func optional(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
