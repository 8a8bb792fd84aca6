// Package subscription implements the subscription lifecycle on top of the
// panel API client and an external user-record store. It is the only
// package holding business policy.
//
// # Lifecycle
//
// A subscription moves through states derived from upstream and stored
// fields rather than persisted as its own object:
//
//	NonExistent -> Trial -> Active -> Expired
//	Active <-> Active (renewal extends expiry)
//	any -> Disabled (admin action)
//
// CreateTrial grants the one-time trial and is deliberately not
// idempotent: a second call while the subscription is live fails with
// ErrAlreadyExists, and the trial-used flag blocks another trial even
// after expiry. Renew recomputes expiry as max(now, current expiry) plus
// the purchased days, so renewing early never loses paid time and renewing
// late never backdates.
//
// # Consistency
//
// Mutations push upstream first and write the store only after the panel
// accepted the change; an upstream failure leaves the stored record
// untouched. Status lookups are cache-first with a medium TTL, and
// concurrent lookups for the same user during a miss are coalesced into a
// single upstream fetch. Every mutation invalidates the user's cache
// entry.
//
// # Stores
//
// The Store interface abstracts the external user-record store. Two
// implementations ship with the package: MemoryStore for tests and
// single-instance use, and RedisStore for shared or durable deployments.
package subscription
