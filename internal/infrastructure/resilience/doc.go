/*
Package resilience provides a circuit breaker for calls to the span collector.

The batch exporter runs every transmission through a Breaker. When the
collector keeps failing the breaker opens and further batches are
discarded immediately instead of waiting on network timeouts, which keeps
the exporter worker responsive and its queue draining.

# Usage

	breaker := resilience.New("collector", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	err := breaker.Execute(func() error {
		return sink.Send(ctx, batch)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
