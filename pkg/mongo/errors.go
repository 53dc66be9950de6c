package mongo

import "errors"

var (
	ErrNoURL     = errors.New("mongo: connection url is empty, set MONGODB_URL")
	ErrConnect   = errors.New("mongo: connect failed")
	ErrUnhealthy = errors.New("mongo: healthcheck failed")
)
