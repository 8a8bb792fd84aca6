package panel

import "time"

// UserStatus is the account state reported by the panel.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
	UserStatusLimited  UserStatus = "limited"
	UserStatusExpired  UserStatus = "expired"
)

// User is the panel's user resource envelope.
type User struct {
	Username        string     `json:"username"`
	DataLimit       int64      `json:"data_limit"`
	UsedTraffic     int64      `json:"used_traffic"`
	Expire          *int64     `json:"expire"` // unix seconds, null means no expiry
	Status          UserStatus `json:"status"`
	SubscriptionURL string     `json:"subscription_url"`
}

// ExpireAt returns the expiry as a time.Time, or the zero value when the
// account has no expiry.
func (u *User) ExpireAt() time.Time {
	if u.Expire == nil || *u.Expire == 0 {
		return time.Time{}
	}
	return time.Unix(*u.Expire, 0)
}

// CreateUserRequest describes a new panel account.
type CreateUserRequest struct {
	Username  string
	DataLimit int64
	ExpireAt  time.Time
}

// UpdateUserRequest carries a partial update; nil fields are left
// untouched upstream.
type UpdateUserRequest struct {
	DataLimit *int64
	ExpireAt  *time.Time
	Status    *UserStatus
}

func (r UpdateUserRequest) body() map[string]any {
	body := make(map[string]any, 3)
	if r.DataLimit != nil {
		body["data_limit"] = *r.DataLimit
	}
	if r.ExpireAt != nil {
		body["expire"] = r.ExpireAt.Unix()
	}
	if r.Status != nil {
		body["status"] = *r.Status
	}
	return body
}
