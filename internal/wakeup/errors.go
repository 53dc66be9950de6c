package wakeup

import "errors"

var (
	ErrClientNil = errors.New("redis client cannot be nil")
	ErrWakerNil  = errors.New("waker cannot be nil")
	ErrNoChannel = errors.New("wake channel name is required")
	ErrSubscribe = errors.New("failed to subscribe to wake channel")
)
