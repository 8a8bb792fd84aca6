package subscription

import "time"

// Status is the effective subscription state derived from upstream and
// stored fields.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

// Record is the subscription state persisted in the external user-record
// store, keyed by the external user id.
type Record struct {
	UserID          int64     `json:"user_id"`
	PanelUsername   string    `json:"panel_username"`
	DataLimit       int64     `json:"data_limit"`
	UsedTraffic     int64     `json:"used_traffic"`
	ExpireAt        time.Time `json:"expire_at"`
	Status          Status    `json:"status"`
	SubscriptionURL string    `json:"subscription_url"`
	TrialUsed       bool      `json:"trial_used"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusInfo is the status snapshot returned by GetStatus. It reflects
// live upstream usage, not the possibly stale stored record.
type StatusInfo struct {
	UserID          int64
	PanelUsername   string
	Status          Status
	DataLimit       int64
	UsedTraffic     int64
	ExpireAt        time.Time
	SubscriptionURL string
}

// Config holds the business defaults for the subscription service.
type Config struct {
	// Trial defaults: 5 GiB for 3 days.
	TrialDataLimit  int64 `env:"TRIAL_DATA_LIMIT" envDefault:"5368709120"`
	TrialExpireDays int   `env:"TRIAL_EXPIRE_DAYS" envDefault:"3"`

	// Cache TTL tiers. Status lookups use the medium tier.
	CacheTTLShort  time.Duration `env:"CACHE_TTL_SHORT" envDefault:"5m"`
	CacheTTLMedium time.Duration `env:"CACHE_TTL_MEDIUM" envDefault:"30m"`
	CacheTTLLong   time.Duration `env:"CACHE_TTL_LONG" envDefault:"1h"`
}
