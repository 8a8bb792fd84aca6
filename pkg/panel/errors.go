package panel

import (
	"errors"

	"github.com/marzkit/marzkit/pkg/httpx"
)

// Domain error kinds the service layer can match on. Transport mechanics
// (retries, backoff, circuit state) never leak past this package; they
// collapse into ErrUpstreamUnavailable.
var (
	ErrNotFound            = errors.New("panel user not found")
	ErrConflict            = errors.New("panel user already exists")
	ErrUpstreamUnavailable = errors.New("panel temporarily unavailable")
	ErrInvalidResponse     = errors.New("invalid panel response")
	ErrAuthentication      = errors.New("panel authentication failed")
)

// translate maps transport outcomes onto domain error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case 404:
			return errors.Join(ErrNotFound, err)
		case 409:
			return errors.Join(ErrConflict, err)
		}
	}

	switch {
	case errors.Is(err, httpx.ErrCircuitOpen),
		errors.Is(err, httpx.ErrRetriesExhausted),
		errors.Is(err, httpx.ErrTimeout),
		errors.Is(err, httpx.ErrTemporaryFailure),
		errors.Is(err, httpx.ErrAuthFailed):
		return errors.Join(ErrUpstreamUnavailable, err)
	}

	return err
}
