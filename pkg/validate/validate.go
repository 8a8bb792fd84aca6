package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/marzkit/marzkit/pkg/subscription"
)

// ValidationError is a single field failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors collects the failures from one validation pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any failure concerns the given field.
func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Rule is a single check plus the failure to report when it does not hold.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply runs all rules and returns the accumulated ValidationErrors, or
// nil when every rule holds.
func Apply(rules ...Rule) error {
	var verrs ValidationErrors
	for _, rule := range rules {
		if !rule.Check() {
			verrs = append(verrs, rule.Error)
		}
	}
	if len(verrs) == 0 {
		return nil
	}
	return verrs
}

// IsValidationError reports whether err carries ValidationErrors.
func IsValidationError(err error) bool {
	var verrs ValidationErrors
	return errors.As(err, &verrs)
}

const (
	// Data limit bounds for plan overrides: 1 GiB to 10 TiB.
	MinDataLimit = int64(1) << 30
	MaxDataLimit = int64(10) << 40

	// Expiry bounds in days.
	MinExpireDays = 1
	MaxExpireDays = 365
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

// UserID parses an external chat user id. Ids are positive integers.
func UserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ValidationErrors{{
			Field:   "user_id",
			Message: "must be a positive integer",
		}}
	}
	return id, nil
}

// Username validates a panel account name and normalizes it to lower case.
func Username(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := Apply(Rule{
		Check: func() bool { return usernameRe.MatchString(raw) },
		Error: ValidationError{
			Field:   "username",
			Message: "must be 3-50 characters of letters, digits, or underscore",
		},
	}); err != nil {
		return "", err
	}
	return strings.ToLower(raw), nil
}

// PlanSelection resolves a plan id from user input against the catalog.
// A nil catalog is a programming error.
func PlanSelection(raw string, catalog map[string]subscription.Plan) (subscription.Plan, error) {
	if catalog == nil {
		panic("validate: plan catalog is required")
	}

	raw = strings.TrimSpace(raw)
	plan, err := subscription.PlanByID(catalog, raw)
	if err != nil {
		return subscription.Plan{}, ValidationErrors{{
			Field:   "plan",
			Message: fmt.Sprintf("unknown plan %q", raw),
		}}
	}
	return plan, nil
}

// CallbackPayload splits a bot callback of the form "action:arg". The
// argument may be empty; the action may not.
func CallbackPayload(raw string) (action, arg string, err error) {
	action, arg, found := strings.Cut(raw, ":")
	if err := Apply(
		Rule{
			Check: func() bool { return found },
			Error: ValidationError{
				Field:   "callback",
				Message: "must have the form action:arg",
			},
		},
		Rule{
			Check: func() bool { return strings.TrimSpace(action) != "" },
			Error: ValidationError{
				Field:   "callback",
				Message: "action must not be empty",
			},
		},
	); err != nil {
		return "", "", err
	}
	return action, arg, nil
}

// DataLimit checks a byte quota against the supported range.
func DataLimit(bytes int64) error {
	return Apply(Rule{
		Check: func() bool { return bytes >= MinDataLimit && bytes <= MaxDataLimit },
		Error: ValidationError{
			Field:   "data_limit",
			Message: fmt.Sprintf("must be between %d and %d bytes", MinDataLimit, MaxDataLimit),
		},
	})
}

// ExpireDays checks a subscription duration against the supported range.
func ExpireDays(days int) error {
	return Apply(Rule{
		Check: func() bool { return days >= MinExpireDays && days <= MaxExpireDays },
		Error: ValidationError{
			Field:   "expire_days",
			Message: fmt.Sprintf("must be between %d and %d days", MinExpireDays, MaxExpireDays),
		},
	})
}
