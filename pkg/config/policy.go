package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

// Policy is the operational policy loaded from YAML:
//
//	default_channels: [inbox]
//	rate_limits:
//	  default:  {capacity: 100, refill_rate: 100, refill_interval: 1s}
//	  per_user: {capacity: 5, refill_rate: 5, refill_interval: 1m}
//	  channels:
//	    email: {capacity: 10, refill_rate: 10, refill_interval: 1s}
//	grouping:
//	  comment_added: {window: 5m, dimension: post_id}
//	holidays:
//	  US: ["2025-12-25"]
//	templates:
//	  welcome: {subject: "Welcome {{.name}}", body: "..."}
type Policy struct {
	DefaultChannels []string                   `yaml:"default_channels"`
	RateLimits      RateLimits                 `yaml:"rate_limits"`
	Grouping        map[string]grouping.Rule   `yaml:"grouping"`
	Holidays        map[string][]string        `yaml:"holidays"`
	Templates       map[string]notify.Template `yaml:"templates"`
}

// RateLimits configures token buckets per channel, per user and by default.
type RateLimits struct {
	Default  *ratelimiter.Config           `yaml:"default"`
	PerUser  *ratelimiter.Config           `yaml:"per_user"`
	Channels map[string]ratelimiter.Config `yaml:"channels"`
}

// LoadPolicy reads and validates the policy file at path. An empty path
// returns an empty policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy. Unknown keys are errors.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks grouping rules and holiday dates. Rate limits are
// validated when the limiter is built.
func (p *Policy) Validate() error {
	for typ, rule := range p.Grouping {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("%w: grouping rule %q: %w", ErrInvalidPolicy, typ, err)
		}
	}
	if slices.Contains(p.DefaultChannels, "") {
		return fmt.Errorf("%w: empty default channel", ErrInvalidPolicy)
	}
	if _, err := p.Calendar(); err != nil {
		return err
	}
	return nil
}

// RateLimitOptions converts the rate limits into limiter policy options.
func (p *Policy) RateLimitOptions() []ratelimiter.PolicyOption {
	var opts []ratelimiter.PolicyOption
	if p.RateLimits.Default != nil {
		opts = append(opts, ratelimiter.WithDefaultLimit(*p.RateLimits.Default))
	}
	if p.RateLimits.PerUser != nil {
		opts = append(opts, ratelimiter.WithUserLimit(*p.RateLimits.PerUser))
	}
	for ch, cfg := range p.RateLimits.Channels {
		opts = append(opts, ratelimiter.WithChannelLimit(ch, cfg))
	}
	return opts
}

// Calendar builds the holiday calendar.
func (p *Policy) Calendar() (*schedule.StaticCalendar, error) {
	cal, err := schedule.NewStaticCalendar(p.Holidays)
	if err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}
	return cal, nil
}

// TemplateSource exposes the inline templates to a notify.TemplateRenderer.
func (p *Policy) TemplateSource() notify.MapSource {
	src := make(notify.MapSource, len(p.Templates))
	for id, t := range p.Templates {
		src[id] = t
	}
	return src
}
