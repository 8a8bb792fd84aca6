// Package panel is the client for the upstream VPN panel's management API.
//
// It exposes the panel's user resource as typed CRUD operations (CreateUser,
// GetUser, UpdateUser, DeleteUser) executed through the resilient transport
// of pkg/httpx, and translates transport outcomes into stable domain error
// kinds:
//
//   - 404 -> ErrNotFound
//   - 409 -> ErrConflict
//   - circuit open, exhausted retries, timeouts -> ErrUpstreamUnavailable
//   - malformed payloads -> ErrInvalidResponse
//
// The package also provides Authenticator, the form-encoded admin token
// exchange consumed by pkg/token.Manager, which completes the credential
// lifecycle: the transport snapshots the managed token per dispatch and
// forces a coalesced refresh on 401.
//
// # Wiring
//
//	var cfg panel.Config
//	config.MustLoad(&cfg)
//
//	tokens := token.NewManager(panel.Authenticator(cfg, nil))
//	transport := httpx.New(cfg.BaseURL,
//		httpx.WithCredentials(tokens),
//		httpx.WithTimeout(cfg.Timeout),
//		httpx.WithCircuitBreaker(httpx.NewCircuitBreaker(5, 30*time.Second, time.Minute)),
//	)
//	client := panel.New(transport)
package panel
