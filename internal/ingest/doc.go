// Package ingest turns records from the Kafka command topic into
// orchestrator calls.
//
// A record value is a JSON command:
//
//	{"command_id": "c-42", "action": "submit", "request": {"user_id": "u1", "type": "welcome", ...}}
//
// Supported actions are submit (the default), schedule and cancel_schedule.
// The command id becomes the notification or schedule id when the request
// does not carry one, so a redelivered record is a no-op. Records without a
// command id fall back to an id derived from topic, partition and offset.
package ingest
