package config

import (
	"github.com/dmitrymomot/notifykit/pkg/dispatcher"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/kafka"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// Service is the complete notifyd configuration. Every section reads its
// own variables; see the section types for names and defaults.
type Service struct {
	// PolicyFile points at the YAML policy (rate limits, grouping rules,
	// holidays, templates). Empty means no policy.
	PolicyFile string `env:"NOTIFYKIT_POLICY_FILE"`

	Log        logger.Config
	Queue      queue.Config
	Dispatcher dispatcher.Config
	Scheduler  schedule.Config
	Grouping   grouping.Config
	Postgres   pg.Config
	Redis      redis.Config
	Mongo      mongo.Config
	Kafka      kafka.Config
	Email      email.Config
	Webhook    webhook.Config
}
