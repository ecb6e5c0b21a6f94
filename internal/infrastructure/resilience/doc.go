/*
Package resilience provides the circuit breaker that guards upstream fetches.

# Overview

A proxied page is only known to have failed after its status line arrives,
and sometimes only after the body has been streamed. The breaker therefore
admits a request first and takes its outcome later.

# Usage

	breaker := resilience.New("upstream", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	done, err := breaker.Allow()
	if err != nil {
		return err // ErrCircuitOpen or ErrTooManyRequests
	}
	resp, err := fetch()
	done(err == nil && resp.StatusCode < 500)

For plain calls use Execute or the generic Call:

	page, err := resilience.Call(breaker, func() (*Page, error) {
		return load(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Outcomes reported for a generation that has already ended are ignored.
*/
package resilience
