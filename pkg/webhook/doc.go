// Package webhook delivers notifications to HTTP endpoints.
//
// Adapter implements channel.Adapter. Each delivery is a single JSON POST of
// an Event to the URL held in the message recipient; retries are left to
// the queue. Requests can be signed with HMAC-SHA256 over
// "<timestamp>.<body>" and carry the job id in X-Webhook-ID so receivers can
// drop duplicates. Receivers check signatures with Verify.
//
// Responses are classified with channel.HTTPStatusError: 401/403 are
// authentication failures, 404/410 invalid recipients, other 4xx rejections
// (except 408, 425 and 429), and 5xx transient. Each endpoint host has its
// own circuit breaker; while it is open deliveries fail fast as retryable.
//
//	adapter := webhook.New(
//		webhook.WithSecret(cfg.Secret),
//		webhook.WithTimeout(5*time.Second),
//	)
package webhook
