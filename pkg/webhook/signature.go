package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signature header names.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Signature is the HMAC-SHA256 of "<timestamp>.<payload>" plus the values
// needed to verify it.
type Signature struct {
	Value     string
	Timestamp int64
	// ID identifies the delivery. Retries of one job reuse it so receivers
	// can deduplicate.
	ID string
}

// Apply sets the signature headers on h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// Sign computes the signature of payload at the given time.
func Sign(secret, id string, payload []byte, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	ts := at.Unix()
	return Signature{Value: mac(secret, ts, payload), Timestamp: ts, ID: id}, nil
}

// Verify checks the signature headers of a received webhook. A positive
// maxAge rejects signatures older than maxAge or more than a minute in the
// future.
func Verify(secret string, payload []byte, h http.Header, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}

	sig := h.Get(HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signature too old: %v", ErrInvalidSignature, age)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: signature timestamp is in the future", ErrInvalidSignature)
		}
	}

	if !hmac.Equal([]byte(mac(secret, ts, payload)), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func mac(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
