// Package backend provides the HTTP client for the strategy service.
//
// Every call yields an Outcome tagged with one of three kinds:
//
//   - Success: the backend answered 2xx with a JSON body.
//   - ApplicationError: the backend answered non-2xx. The status and body
//     are kept so they can be relayed unchanged.
//   - TransportFailure: no usable answer. This covers refused or reset
//     connections, timeouts and a 2xx body that is not JSON.
//
// The client never retries. Retries and circuit breaking are layered on top
// by the forwarder.
//
//	client := backend.NewClient(cfg.Backend, backend.WithLogger(logger))
//	outcome := client.Call(ctx, http.MethodGet, "/api/v1/health", nil)
//	switch outcome.Kind {
//	case backend.OutcomeSuccess:
//	    // relay outcome.Body
//	}
package backend
