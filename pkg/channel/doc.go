// Package channel defines the boundary between the dispatch core and the
// providers that actually deliver notifications.
//
// An Adapter delivers one Message and returns a Result whose Status tells
// the dispatcher what to do with the job: success acks it, retryable
// schedules a retry with backoff, permanent sends it to the dead letter
// sink. Adapters that only have an error at hand use FromError, which runs
// it through Classify.
//
// Provider adapters live next to their providers: webhook.Adapter,
// email.Adapter, inbox.Adapter and kafka.Producer. LogAdapter is a
// development sink.
package channel
