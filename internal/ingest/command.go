package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// Action selects what a command does.
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionSchedule       Action = "schedule"
	ActionCancelSchedule Action = "cancel_schedule"
)

// Command is the JSON value of a record on the command topic.
type Command struct {
	CommandID  string                `json:"command_id,omitempty"`
	Action     Action                `json:"action,omitempty"`
	Request    *notify.Request       `json:"request,omitempty"`
	Schedule   *notify.ScheduleInput `json:"schedule,omitempty"`
	ScheduleID string                `json:"schedule_id,omitempty"`
}

// recordNamespace seeds ids derived from record coordinates.
var recordNamespace = uuid.MustParse("0b6f6f0c-52c1-4c53-9a0e-6b2f1d0f7a11")

// Decode parses and validates a record value. The returned command always
// has an action and a command id.
func Decode(r *kgo.Record) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(r.Value, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Action == "" {
		cmd.Action = ActionSubmit
	}
	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewSHA1(recordNamespace,
			fmt.Appendf(nil, "%s/%d/%d", r.Topic, r.Partition, r.Offset)).String()
	}

	switch cmd.Action {
	case ActionSubmit:
		if cmd.Request == nil {
			return nil, fmt.Errorf("%w: submit without request", ErrInvalidCommand)
		}
		if cmd.Request.ID == "" {
			cmd.Request.ID = cmd.CommandID
		}
	case ActionSchedule:
		if cmd.Request == nil || cmd.Schedule == nil {
			return nil, fmt.Errorf("%w: schedule needs request and schedule", ErrInvalidCommand)
		}
		if cmd.Schedule.ID == "" {
			cmd.Schedule.ID = cmd.CommandID
		}
	case ActionCancelSchedule:
		if cmd.ScheduleID == "" {
			return nil, fmt.Errorf("%w: cancel_schedule without schedule_id", ErrInvalidCommand)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return &cmd, nil
}
