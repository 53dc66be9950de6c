package kafka

import "time"

// Config holds Kafka connection and topic settings.
type Config struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	ClientID     string        `env:"KAFKA_CLIENT_ID" envDefault:"notifyd"`
	PushTopic    string        `env:"KAFKA_PUSH_TOPIC" envDefault:"notifications.push"`
	CommandTopic string        `env:"KAFKA_COMMAND_TOPIC" envDefault:"notification-commands"`
	GroupID      string        `env:"KAFKA_GROUP_ID" envDefault:"notifyd"`
	ProduceWait  time.Duration `env:"KAFKA_PRODUCE_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}
