package notify

import (
	"context"
	"sync"
)

// PreferenceStore answers whether a user accepts a notification type on a
// channel.
type PreferenceStore interface {
	ShouldSend(ctx context.Context, userID, notificationType, channel string) (bool, error)
}

// Any matches every notification type or channel in MemoryPreferences.
const Any = "*"

// MemoryPreferences keeps opt-outs in memory. Everything not suppressed is
// allowed.
type MemoryPreferences struct {
	mu         sync.RWMutex
	suppressed map[string]map[string]struct{}
}

// NewMemoryPreferences creates an empty preference store.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{suppressed: make(map[string]map[string]struct{})}
}

// Suppress opts userID out of notificationType on channel. Either may be Any.
func (p *MemoryPreferences) Suppress(userID, notificationType, channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.suppressed[userID]
	if !ok {
		set = make(map[string]struct{})
		p.suppressed[userID] = set
	}
	set[prefKey(notificationType, channel)] = struct{}{}
}

// Allow removes an opt-out added by Suppress with the same arguments.
func (p *MemoryPreferences) Allow(userID, notificationType, channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.suppressed[userID], prefKey(notificationType, channel))
}

// ShouldSend implements PreferenceStore.
func (p *MemoryPreferences) ShouldSend(_ context.Context, userID, notificationType, channel string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.suppressed[userID]
	for _, k := range []string{
		prefKey(notificationType, channel),
		prefKey(Any, channel),
		prefKey(notificationType, Any),
		prefKey(Any, Any),
	} {
		if _, ok := set[k]; ok {
			return false, nil
		}
	}
	return true, nil
}

func prefKey(notificationType, channel string) string {
	return notificationType + "|" + channel
}
