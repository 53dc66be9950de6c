package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment names accepted by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Format is the log output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Option configures New.
type Option func(*config)

type config struct {
	level      slog.Level
	format     Format
	output     io.Writer
	addSource  bool
	attrs      []slog.Attr
	extractors []ContextExtractor
}

type preset struct {
	name   string
	level  slog.Level
	format Format
}

var presets = map[string]preset{
	EnvDevelopment: {EnvDevelopment, slog.LevelDebug, FormatText},
	"dev":          {EnvDevelopment, slog.LevelDebug, FormatText},
	EnvStaging:     {EnvStaging, slog.LevelInfo, FormatJSON},
	"stage":        {EnvStaging, slog.LevelInfo, FormatJSON},
	EnvProduction:  {EnvProduction, slog.LevelInfo, FormatJSON},
	"prod":         {EnvProduction, slog.LevelInfo, FormatJSON},
}

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat sets the output format. It panics on an unknown format so a
// misconfigured notifyd fails at startup.
func WithFormat(f Format) Option {
	return func(c *config) {
		switch f {
		case FormatJSON, FormatText:
			c.format = f
		default:
			panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
		}
	}
}

// WithOutput sets the destination. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithSource adds the caller's file and line to every record.
func WithSource() Option {
	return func(c *config) { c.addSource = true }
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithContextExtractors registers extractors run on every record logged
// with a context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// WithEnvironment applies the level and format of the named environment and
// tags records with service and env. Unknown names use development.
func WithEnvironment(env, service string) Option {
	return func(c *config) {
		p, ok := presets[strings.ToLower(strings.TrimSpace(env))]
		if !ok {
			p = presets[EnvDevelopment]
		}
		c.level = p.level
		c.format = p.format
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
		c.attrs = append(c.attrs, slog.String("env", p.name))
	}
}

// ParseLevel converts a level name (debug, info, warn, error) into a
// slog.Level. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SetAsDefault installs l as the slog default logger.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New builds a logger. The default is JSON at info level on stdout.
func New(opts ...Option) *slog.Logger {
	cfg := &config{level: slog.LevelInfo, format: FormatJSON, output: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	var h slog.Handler
	if cfg.format == FormatText {
		h = slog.NewTextHandler(cfg.output, hopts)
	} else {
		h = slog.NewJSONHandler(cfg.output, hopts)
	}
	if len(cfg.attrs) > 0 {
		h = h.WithAttrs(cfg.attrs)
	}
	if len(cfg.extractors) > 0 {
		h = &contextHandler{next: h, extractors: cfg.extractors}
	}
	return slog.New(h)
}
