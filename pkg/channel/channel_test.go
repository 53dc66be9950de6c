package channel_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want channel.Status
	}{
		{"nil", nil, channel.StatusSuccess},
		{"deadline", context.DeadlineExceeded, channel.StatusRetryable},
		{"timeout", channel.ErrTimeout, channel.StatusRetryable},
		{"network", fmt.Errorf("dial: %w", channel.ErrNetwork), channel.StatusRetryable},
		{"5xx", channel.ErrProviderUnavailable, channel.StatusRetryable},
		{"throttled", channel.ErrRateLimited, channel.StatusRetryable},
		{"invalid recipient", fmt.Errorf("x: %w", channel.ErrInvalidRecipient), channel.StatusPermanent},
		{"unsubscribed", channel.ErrUnsubscribed, channel.StatusPermanent},
		{"bounced", errors.Join(errors.New("hard bounce"), channel.ErrBounced), channel.StatusPermanent},
		{"auth", channel.ErrAuth, channel.StatusPermanent},
		{"config", channel.ErrConfig, channel.StatusPermanent},
		{"unknown channel", channel.ErrUnknownChannel, channel.StatusPermanent},
		{"unrecognised", errors.New("boom"), channel.StatusRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, channel.Classify(tt.err))
			assert.Equal(t, tt.want, channel.FromError(tt.err).Status)
		})
	}
}

func TestHTTPStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want channel.Status
	}{
		{http.StatusOK, channel.StatusSuccess},
		{http.StatusAccepted, channel.StatusSuccess},
		{http.StatusUnauthorized, channel.StatusPermanent},
		{http.StatusForbidden, channel.StatusPermanent},
		{http.StatusNotFound, channel.StatusPermanent},
		{http.StatusGone, channel.StatusPermanent},
		{http.StatusBadRequest, channel.StatusPermanent},
		{http.StatusRequestTimeout, channel.StatusRetryable},
		{http.StatusTooManyRequests, channel.StatusRetryable},
		{http.StatusInternalServerError, channel.StatusRetryable},
		{http.StatusBadGateway, channel.StatusRetryable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, channel.Classify(channel.HTTPStatusError(tt.code)))
		})
	}

	assert.ErrorIs(t, channel.HTTPStatusError(http.StatusUnauthorized), channel.ErrAuth)
}

func TestNewMessage(t *testing.T) {
	t.Parallel()

	job := &queue.Job{
		ID:       "job-1",
		UserID:   "user-1",
		Type:     "welcome",
		Priority: queue.PriorityHigh,
		Attempt:  2,
		Payload: queue.Payload{
			Subject:    "Hi",
			Body:       "Hello",
			Channels:   []string{"email", "in_app"},
			Recipients: map[string]string{"email": "u@example.com"},
		},
	}

	email := channel.NewMessage(job, "email")
	assert.Equal(t, "u@example.com", email.Recipient)
	assert.Equal(t, "email", email.Channel)
	assert.Equal(t, 2, email.Attempt)
	assert.Equal(t, queue.PriorityHigh, email.Priority)

	inApp := channel.NewMessage(job, "in_app")
	assert.Equal(t, "user-1", inApp.Recipient)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	ok := channel.AdapterFunc("sms", func(context.Context, channel.Message) channel.Result {
		return channel.Success("")
	})
	r, err := channel.NewRegistry(channel.NewLogAdapter("log", nil), ok)
	require.NoError(t, err)

	assert.Equal(t, []string{"log", "sms"}, r.Names())

	a, err := r.Get("sms")
	require.NoError(t, err)
	assert.Equal(t, channel.StatusSuccess, a.Deliver(context.Background(), channel.Message{}).Status)

	_, err = r.Get("pigeon")
	assert.ErrorIs(t, err, channel.ErrUnknownChannel)

	assert.ErrorIs(t, r.Register(ok), channel.ErrDuplicateAdapter)
	assert.ErrorIs(t, r.Register(nil), channel.ErrAdapterNil)
}

func TestLogAdapter(t *testing.T) {
	t.Parallel()

	a := channel.NewLogAdapter("log", nil)
	assert.Equal(t, "log", a.Name())
	res := a.Deliver(context.Background(), channel.Message{JobID: "j1"})
	assert.Equal(t, channel.StatusSuccess, res.Status)
	assert.Equal(t, "j1", res.ProviderID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, channel.StatusRetryable, a.Deliver(ctx, channel.Message{}).Status)
}
