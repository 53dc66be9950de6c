package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// DevSender implements EmailSender for local development.
// It saves emails as HTML and JSON files to a specified directory
// instead of sending them through an email service.
type DevSender struct {
	dir string
	now func() time.Time
	seq atomic.Uint64
}

// NewDevSender creates a development email sender that saves emails to disk.
// The directory will be created if it doesn't exist.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

// emailMetadata contains the email data saved to JSON (excluding HTML content).
type emailMetadata struct {
	Timestamp string            `json:"timestamp"`
	SendTo    string            `json:"send_to"`
	Subject   string            `json:"subject"`
	Tag       string            `json:"tag,omitempty"`
	BodyText  string            `json:"body_text,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SendEmail saves the email as HTML and metadata as JSON to the configured
// directory. The returned id is the shared base name of both files.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %w", ErrFailedToSendEmail, err)
	}

	now := d.now()

	// Use tag if available, otherwise use subject
	identifier := params.Tag
	if identifier == "" {
		identifier = params.Subject
	}
	baseFilename := fmt.Sprintf("%s_%03d_%s",
		now.Format("2006_01_02_150405"), d.seq.Add(1)%1000, sanitizeFilename(identifier))

	htmlPath := filepath.Join(d.dir, baseFilename+".html")
	if err := os.WriteFile(htmlPath, []byte(params.BodyHTML), 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write HTML file: %w", ErrFailedToSendEmail, err)
	}

	jsonData, err := json.MarshalIndent(emailMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    params.SendTo,
		Subject:   params.Subject,
		Tag:       params.Tag,
		BodyText:  params.BodyText,
		Metadata:  params.Metadata,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal metadata: %w", ErrFailedToSendEmail, err)
	}

	jsonPath := filepath.Join(d.dir, baseFilename+".json")
	if err := os.WriteFile(jsonPath, jsonData, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write JSON file: %w", ErrFailedToSendEmail, err)
	}

	return baseFilename, nil
}

// sanitizeRegex matches characters that are not alphanumeric, dash, underscore, or dot
var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename converts a string into a safe filename.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
