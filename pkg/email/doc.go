// Package email delivers notifications over the "email" channel.
//
// The package is built around the EmailSender interface so providers can be
// swapped without touching the dispatcher:
//   - NewPostmarkClient sends through Postmark's transactional API
//   - NewDevSender writes HTML and JSON files to a directory for local runs
//
// NewSender picks one of them from Config. Adapter wraps a sender as a
// channel.Adapter:
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//	    return err
//	}
//	adapter, err := email.NewAdapter(sender)
//	registry.Register(adapter)
//
// # Error Handling
//
// Provider failures are wrapped with the channel error taxonomy so the
// dispatcher can decide between retry and dead-lettering:
//   - Postmark error 10 and 405 map to channel.ErrAuth
//   - 300 maps to channel.ErrInvalidRecipient, 406 to channel.ErrBounced
//   - 400, 401 and 402 map to channel.ErrConfig
//   - anything else is classified by HTTP status, so 429 and 5xx retry
//
// The package's own sentinels (ErrInvalidConfig, ErrInvalidParams,
// ErrFailedToSendEmail) stay available for errors.Is checks.
package email
