package subscription

import "errors"

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrAlreadyExists    = errors.New("subscription already exists")
	ErrTrialAlreadyUsed = errors.New("trial subscription already used")
	ErrInvalidDuration  = errors.New("invalid renewal duration")
	ErrPlanNotFound     = errors.New("subscription plan not found")
)
