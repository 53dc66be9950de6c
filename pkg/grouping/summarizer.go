package grouping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Summarizer builds the digest payload for a window with two or more members.
type Summarizer func(w *Window) queue.Payload

// DefaultSummarizer produces "N new <type> notifications" with the member
// subjects as body lines and the union of member channels.
func DefaultSummarizer(w *Window) queue.Payload {
	n := len(w.Members)
	p := queue.Payload{
		Subject: fmt.Sprintf("%d new %s notifications", n, strings.ReplaceAll(w.Type, "_", " ")),
		Data: map[string]any{
			"count":     n,
			"group_key": w.GroupKey,
		},
		Members: w.MemberIDs(),
	}

	lines := make([]string, 0, n)
	for i := range w.Members {
		m := &w.Members[i]
		if m.Payload.Subject != "" {
			lines = append(lines, m.Payload.Subject)
		}
		for _, ch := range m.Payload.Channels {
			if !slices.Contains(p.Channels, ch) {
				p.Channels = append(p.Channels, ch)
			}
		}
		for ch, addr := range m.Payload.Recipients {
			if p.Recipients == nil {
				p.Recipients = make(map[string]string)
			}
			if _, ok := p.Recipients[ch]; !ok {
				p.Recipients[ch] = addr
			}
		}
	}
	p.Body = strings.Join(lines, "\n")
	return p
}
