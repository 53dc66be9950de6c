package commands

import "errors"

var (
	ErrPostgresRequired = errors.New("this command needs PG_CONN_URL: jobs live in Postgres")
	ErrMissingArgument  = errors.New("missing argument")
	ErrInvalidFlag      = errors.New("invalid flag value")
	ErrNotLoaded        = errors.New("configuration is not loaded")
)
