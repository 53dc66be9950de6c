package kafka

import "errors"

var (
	ErrNoBrokers    = errors.New("kafka: no seed brokers configured")
	ErrNoTopic      = errors.New("kafka: topic is required")
	ErrClientNil    = errors.New("kafka: client is nil")
	ErrHandlerNil   = errors.New("kafka: record handler is nil")
	ErrEncodeRecord = errors.New("kafka: failed to encode record")
)
