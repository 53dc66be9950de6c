// Package inbox is the in-app notification channel.
//
// Inbox implements channel.Adapter: each delivered job becomes a
// Notification in the owner's inbox, keyed by the job id so a retried
// delivery does not store it twice. With a Hub attached, new notifications
// are also pushed to live subscribers (SSE or WebSocket handlers in the
// host application).
//
//	hub := inbox.NewHub(16, 10_000)
//	in, err := inbox.New(inbox.NewMemoryStorage(), inbox.WithHub(hub))
//	registry.Register(in)
//
//	sub, _ := in.Subscribe(ctx, userID)
//	for n := range sub.C() {
//	    // write n to the client
//	}
package inbox
