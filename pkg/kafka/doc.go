// Package kafka connects the dispatch core to Kafka with franz-go.
//
// Producer is the "push" channel adapter: every message becomes a JSON
// PushEvent record keyed by recipient, consumed by downstream push
// gateways. Consumer polls a topic with a consumer group and hands each
// record to a Handler; notifyd uses it to ingest submit commands.
package kafka
