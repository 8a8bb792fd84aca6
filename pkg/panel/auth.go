package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marzkit/marzkit/pkg/token"
)

// Config holds the upstream panel connection settings. Loaded once at
// process start via pkg/config.
type Config struct {
	BaseURL  string        `env:"MARZBAN_URL,required"`
	Username string        `env:"MARZBAN_USERNAME,required"`
	Password string        `env:"MARZBAN_PASSWORD,required"`
	Timeout  time.Duration `env:"MARZBAN_TIMEOUT" envDefault:"30s"`
	// TokenTTL is the client-side lifetime assumed for issued tokens; the
	// panel does not report an expiry in the token response.
	TokenTTL time.Duration `env:"MARZBAN_TOKEN_TTL" envDefault:"1h"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Authenticator returns a token.AuthFunc that performs the panel's admin
// token exchange: a form-encoded POST with the configured username and
// password. A nil client falls back to a default with the configured
// timeout.
func Authenticator(cfg Config, client *http.Client) token.AuthFunc {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	endpoint := strings.TrimSuffix(cfg.BaseURL, "/") + "/api/admin/token"

	return func(ctx context.Context) (token.Credential, error) {
		form := url.Values{
			"username": {cfg.Username},
			"password": {cfg.Password},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
			strings.NewReader(form.Encode()))
		if err != nil {
			return token.Credential{}, errors.Join(ErrAuthentication, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return token.Credential{}, errors.Join(ErrAuthentication, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return token.Credential{}, fmt.Errorf("%w: token endpoint returned status %d",
				ErrAuthentication, resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return token.Credential{}, errors.Join(ErrAuthentication, err)
		}

		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return token.Credential{}, errors.Join(ErrAuthentication, ErrInvalidResponse, err)
		}
		if tr.AccessToken == "" {
			return token.Credential{}, fmt.Errorf("%w: empty access token", ErrInvalidResponse)
		}

		now := time.Now()
		return token.Credential{
			AccessToken: tr.AccessToken,
			IssuedAt:    now,
			ExpiresAt:   now.Add(cfg.TokenTTL),
		}, nil
	}
}
