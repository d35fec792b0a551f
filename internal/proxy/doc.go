// Package proxy forwards gateway operations to the strategy service with
// circuit breaking, retries and per-route fallbacks.
//
// Each logical operation ("generate-strategy", "top-strategies", ...) has a
// RoutePolicy. Forward consults the operation's breaker before every
// attempt, retries what the policy allows, and turns the terminal outcome
// into a Response:
//
//   - a backend success is relayed verbatim;
//   - a backend application error is relayed with its own status and body;
//   - a transport failure or short-circuit invokes the route's fallback.
//
// Example:
//
//	fwd, err := proxy.NewForwarder(client, breakers, []proxy.RoutePolicy{{
//	    Operation: "generate-strategy",
//	    Retry:     retry.NewPolicy(retry.DefaultConfig()),
//	    Breaker:   circuitbreaker.DefaultConfig(),
//	    Fallback:  proxy.UnavailableFallback("Strategy generation temporarily unavailable"),
//	}})
//	resp, err := fwd.Forward(ctx, "generate-strategy", proxy.Request{
//	    Method: http.MethodPost,
//	    Path:   "/api/v1/strategies/generate",
//	    Body:   body,
//	})
package proxy
