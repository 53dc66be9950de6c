package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/notifykit/pkg/channel"
)

// Postmark API error codes that change how a failure is classified.
// See https://postmarkapp.com/developer/api/overview#error-codes.
const (
	postmarkBadServerToken     = 10
	postmarkSenderNotFound     = 400
	postmarkSenderNotConfirmed = 401
	postmarkInvalidJSON        = 402
	postmarkNotAllowedToSend   = 405
	postmarkInactiveRecipient  = 406
	postmarkInvalidEmail       = 300
)

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// PostmarkOption customizes the Postmark client.
type PostmarkOption func(*postmark.Client)

// WithPostmarkBaseURL points the client at another API endpoint.
func WithPostmarkBaseURL(u string) PostmarkOption {
	return func(c *postmark.Client) {
		c.BaseURL = u
	}
}

// WithPostmarkHTTPClient replaces the HTTP client used for API calls.
func WithPostmarkHTTPClient(hc *http.Client) PostmarkOption {
	return func(c *postmark.Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewPostmarkClient creates a Postmark-backed email sender.
// Both tokens are required for runtime operation.
func NewPostmarkClient(cfg Config, opts ...PostmarkOption) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		return nil, fmt.Errorf("%w: SupportEmail is required", ErrInvalidConfig)
	}
	if !ValidAddress(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	client.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(client)
	}
	base := client.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *client.HTTPClient
	hc.Transport = statusTransport{base: base}
	client.HTTPClient = &hc

	return &postmarkClient{client: client, config: cfg}, nil
}

// MustNewPostmarkClient creates a Postmark client that panics on invalid config.
func MustNewPostmarkClient(cfg Config, opts ...PostmarkOption) EmailSender {
	client, err := NewPostmarkClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail implements EmailSender using Postmark's transactional API.
// Opens and HTML link clicks are tracked. Reply-To is the support address.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	st := &apiStatus{}
	resp, err := c.client.SendEmail(context.WithValue(ctx, apiStatusKey{}, st), postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TextBody:   params.BodyText,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})

	switch {
	case st.httpCode >= 400:
		return "", errors.Join(ErrFailedToSendEmail, postmarkError(st.httpCode, st.errorCode, st.message))
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(ErrFailedToSendEmail, channel.ErrTimeout, err)
		}
		return "", errors.Join(ErrFailedToSendEmail, channel.ErrNetwork, err)
	case resp.ErrorCode > 0:
		return "", errors.Join(ErrFailedToSendEmail, postmarkError(http.StatusUnprocessableEntity, resp.ErrorCode, resp.Message))
	}
	return resp.MessageID, nil
}

// postmarkError maps a Postmark failure onto the channel error taxonomy.
func postmarkError(httpCode int, code int64, message string) error {
	var kind error
	switch code {
	case postmarkBadServerToken, postmarkNotAllowedToSend:
		kind = channel.ErrAuth
	case postmarkSenderNotFound, postmarkSenderNotConfirmed, postmarkInvalidJSON:
		kind = channel.ErrConfig
	case postmarkInvalidEmail:
		kind = channel.ErrInvalidRecipient
	case postmarkInactiveRecipient:
		kind = channel.ErrBounced
	default:
		kind = channel.HTTPStatusError(httpCode)
		if kind == nil {
			kind = channel.ErrRejected
		}
	}
	return fmt.Errorf("%w: postmark error %d: %s", kind, code, message)
}

type apiStatusKey struct{}

// apiStatus captures the HTTP status and API error code of a failed call
// before the Postmark client decodes the response.
type apiStatus struct {
	httpCode  int
	errorCode int64
	message   string
}

type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	st, ok := req.Context().Value(apiStatusKey{}).(*apiStatus)
	if !ok || resp.StatusCode < 400 {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	var apiErr struct {
		ErrorCode int64
		Message   string
	}
	_ = json.Unmarshal(body, &apiErr)
	st.httpCode = resp.StatusCode
	st.errorCode = apiErr.ErrorCode
	st.message = apiErr.Message
	if st.message == "" {
		st.message = http.StatusText(resp.StatusCode)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
