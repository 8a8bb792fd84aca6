// Package token manages the bearer credential for an upstream API that
// authenticates with short-lived tokens.
//
// A Manager holds the current Credential and transparently re-authenticates
// when it expires, with a configurable skew so tokens are replaced slightly
// before their declared expiry. Refreshes are coalesced: no matter how many
// goroutines demand a token at once, at most one authentication call is in
// flight and every caller receives its result.
//
// The Manager also satisfies the credential-provider contract of pkg/httpx
// (Token / RefreshToken), which wires the 401-retry path: on a rejected
// credential the HTTP client calls ForceRefresh once and re-dispatches.
//
//	auth := panel.Authenticator(cfg, nil)
//	tokens := token.NewManager(auth)
//
//	client := httpx.New(cfg.BaseURL, httpx.WithCredentials(tokens))
package token
