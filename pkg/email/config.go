package email

// Config holds email service configuration.
// The Postmark tokens are optional so development setups can fall back to
// DevSender, which writes messages to DevDir instead of sending them.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@localhost"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Production reports whether Postmark credentials are configured.
func (c Config) Production() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
