package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channel"
)

// Event is the JSON body posted to the endpoint.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Members   []string       `json:"members,omitempty"`
	Attempt   int            `json:"attempt"`
	Timestamp time.Time      `json:"timestamp"`
}

// Adapter delivers notifications as signed HTTP POST requests. The message
// recipient is the endpoint URL.
type Adapter struct {
	name     string
	client   *http.Client
	timeout  time.Duration
	secret   string
	headers  http.Header
	breakers *breakers
	now      func() time.Time
	logger   *slog.Logger
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates a webhook adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		name: "webhook",
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:  10 * time.Second,
		headers:  make(http.Header),
		breakers: &breakers{byHost: make(map[string]*CircuitBreaker)},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements channel.Adapter
func (a *Adapter) Name() string {
	return a.name
}

// Deliver implements channel.Adapter
func (a *Adapter) Deliver(ctx context.Context, msg channel.Message) channel.Result {
	u, err := parseURL(msg.Recipient)
	if err != nil {
		return channel.Permanent(errors.Join(channel.ErrInvalidRecipient, err))
	}

	cb := a.breakers.get(u.Host)
	if !cb.Allow() {
		return channel.Retryable(fmt.Errorf("%w: %w: %s", channel.ErrProviderUnavailable, ErrCircuitOpen, u.Host))
	}

	status, err := a.post(ctx, u.String(), msg)
	res := channel.FromError(err)

	// Only transient failures say something about endpoint health.
	if res.Status == channel.StatusRetryable {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}

	if err != nil {
		a.logger.WarnContext(ctx, "webhook delivery failed",
			slog.String("job_id", msg.JobID),
			slog.String("host", u.Host),
			slog.Int("status", status),
			slog.String("classification", res.Status.String()),
			slog.String("error", err.Error()))
	}
	return res
}

func (a *Adapter) post(ctx context.Context, endpoint string, msg channel.Message) (int, error) {
	now := a.now()
	body, err := json.Marshal(Event{
		ID:        msg.JobID,
		Type:      msg.Type,
		UserID:    msg.UserID,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Data:      msg.Data,
		Members:   msg.Members,
		Attempt:   msg.Attempt,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to marshal event: %w", channel.ErrRejected, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", channel.ErrInvalidRecipient, err)
	}
	for k, v := range a.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifykit-webhook/1.0")

	if a.secret != "" {
		sig, err := Sign(a.secret, msg.JobID, body, now)
		if err != nil {
			return 0, errors.Join(channel.ErrConfig, err)
		}
		sig.Apply(req.Header)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", channel.ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", channel.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if statusErr := channel.HTTPStatusError(resp.StatusCode); statusErr != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if s := strings.TrimSpace(strings.ReplaceAll(string(snippet), "\n", " ")); s != "" {
			return resp.StatusCode, fmt.Errorf("%w: %s", statusErr, s)
		}
		return resp.StatusCode, statusErr
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}

func parseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}
