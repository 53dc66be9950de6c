package deadletter

import "errors"

var (
	ErrStorageNil      = errors.New("dead letter storage cannot be nil")
	ErrJobNil          = errors.New("dead letter job cannot be nil")
	ErrRecordNotFound  = errors.New("dead letter record not found")
	ErrAlreadyReplayed = errors.New("dead letter record already replayed")
	ErrReplayFailed    = errors.New("failed to replay dead letter")
)
