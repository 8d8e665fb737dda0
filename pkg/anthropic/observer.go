package anthropic

// UsageObserver receives token usage after each successful message call.
// The pipeline's cost tracker implements this; defining the interface here
// lets the client report usage without importing the tracker.
type UsageObserver interface {
	ObserveUsage(model, label string, usage TokenUsage)
}

// ClientOption configures the SDK-backed client.
type ClientOption func(*sdkClient)

// WithUsageObserver attaches an observer notified after every successful
// CreateMessage call.
func WithUsageObserver(obs UsageObserver) ClientOption {
	return func(c *sdkClient) {
		c.observer = obs
	}
}
