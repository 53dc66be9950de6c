package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates JSON logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		require.NotNil(t, log)
		log.Info("hello")
		var entry map[string]any
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithFormat(logger.FormatText),
		)
		log.Info("hello")
		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "hello")
	})

	t.Run("last format wins", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithFormat(logger.FormatText),
			logger.WithFormat(logger.FormatJSON),
		)
		log.Info("hello")
		var entry map[string]any
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("includes default attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithAttr(slog.String("svc", "test")),
		)
		log.Info("msg")
		var entry map[string]any
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)
		assert.Equal(t, "test", entry["svc"])
	})

	t.Run("extracts from context", func(t *testing.T) {
		buf := &bytes.Buffer{}
		type key string
		ctxKey := key("id")
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
				if v := ctx.Value(ctxKey); v != nil {
					return slog.String("id", v.(string)), true
				}
				return slog.Attr{}, false
			}),
		)
		ctx := context.WithValue(context.Background(), ctxKey, "42")
		log.InfoContext(ctx, "context msg")
		var entry map[string]any
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)
		assert.Equal(t, "42", entry["id"])
	})
}

func TestSetAsDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	logger.SetAsDefault(log)
	slog.Info("default")
	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)
	assert.Equal(t, "default", entry["msg"])
}

func TestWithFormatPanics(t *testing.T) {
	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("development uses text and debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("dev", "svc"), logger.WithOutput(buf))
		log.Debug("msg")
		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "service=svc")
		assert.Contains(t, out, "env=development")
	})

	t.Run("production uses json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "svc"), logger.WithOutput(buf))
		log.Debug("hidden")
		log.Info("msg")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "svc", entry["service"])
		assert.Equal(t, logger.EnvProduction, entry["env"])
	})

	t.Run("unknown falls back to development", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("qa", ""), logger.WithOutput(buf))
		log.Debug("msg")
		out := buf.String()
		assert.Contains(t, out, "env=development")
		assert.NotContains(t, out, "service=")
	})
}

func TestWithSource(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(logger.WithSource(), logger.WithOutput(buf))
	log.Info("msg")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "source")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nonsense"))
}

func TestFromConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.FromConfig(logger.Config{
		Env:     logger.EnvDevelopment,
		Service: "notifyd",
		Level:   "warn",
		Format:  logger.FormatJSON,
	}, logger.WithOutput(buf))

	ctx := logger.WithWorker(logger.WithJob(context.Background(), "job-1"), "worker-3")
	log.InfoContext(ctx, "dropped")
	log.WarnContext(ctx, "kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "notifyd", entry["service"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "worker-3", entry["worker_id"])
}

func TestExtractorsWithoutValues(t *testing.T) {
	_, ok := logger.JobExtractor(context.Background())
	assert.False(t, ok)
	_, ok = logger.WorkerExtractor(logger.WithWorker(context.Background(), ""))
	assert.False(t, ok)
}
