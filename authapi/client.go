package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealpoint/portal/identity"
)

const defaultTimeout = 15 * time.Second

// Backend endpoint paths, relative to "{baseURL}/{role}".
const (
	loginPath          = "/auth/login"
	changePasswordPath = "/auth/change-password"
	forgotPasswordPath = "/auth/forgot-password"
	resetPasswordPath  = "/auth/reset-password"
)

// Backend failure codes carried in 4xx response bodies.
const (
	codeWrongOldPassword = "wrong_old_password"
	codeWeakPassword     = "weak_password"
	codeInvalidCode      = "invalid_code"
	codeExpiredCode      = "expired_code"
)

// Credentials is a username/password pair entered on the login form.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is the payload of a successful login: the opaque session
// token plus the identity the backend confirmed for the requested role.
type LoginResult struct {
	Token    string
	Identity identity.Identity
}

// TokenSource supplies the current session token for authenticated calls.
// It returns the empty string when no session exists.
type TokenSource func() string

// Client talks to the ordering backend's auth endpoints. It is stateless
// regarding retries: every operation performs exactly one attempt and
// returns the typed outcome, leaving retry policy to the caller.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	logger      zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for timeouts, TLS config, etc).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger used for request-level debug logging.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a backend auth client. tokenSource supplies the current
// session token; it is consulted per request so the client never caches a
// stale token.
func NewClient(baseURL string, tokenSource TokenSource, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	if tokenSource == nil {
		return nil, errors.New("[NewClient] tokenSource is required")
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		tokenSource: tokenSource,
		logger:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token              string `json:"token"`
	Username           string `json:"username"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

type changePasswordRequest struct {
	// OldPassword is omitted only when the session carries the
	// must-change-password flag; the backend accepts the asymmetry for the
	// forced first-login change and nothing else.
	OldPassword string `json:"oldPassword,omitempty"`
	NewPassword string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type apiFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login exchanges credentials for a session token and confirmed identity.
func (c *Client) Login(ctx context.Context, role identity.Role, creds Credentials) (*LoginResult, error) {
	resp, err := c.post(ctx, role, loginPath, loginRequest{
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var body loginResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, errors.Wrap(ErrNetwork, "[Client.Login] decode response")
		}
		confirmedRole, err := identity.ParseRole(body.Role)
		if err != nil {
			return nil, errors.Wrap(ErrNetwork, "[Client.Login] backend returned an unknown role")
		}
		if body.Token == "" {
			return nil, errors.Wrap(ErrNetwork, "[Client.Login] backend returned an empty token")
		}
		return &LoginResult{
			Token: body.Token,
			Identity: identity.Identity{
				PrincipalName:      body.Username,
				Role:               confirmedRole,
				MustChangePassword: body.MustChangePassword,
			},
		}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Login failure is a credentials problem, not a token problem.
		return nil, ErrInvalidCredentials

	default:
		return nil, errors.Wrapf(ErrNetwork, "[Client.Login] backend returned %d", resp.StatusCode)
	}
}

// ChangePassword changes the current principal's password. oldPassword may
// be empty only for a forced first-login change; it is then omitted from
// the payload entirely.
func (c *Client) ChangePassword(ctx context.Context, role identity.Role, oldPassword, newPassword string) error {
	resp, err := c.post(ctx, role, changePasswordPath, changePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrTokenRejected
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		switch decodeFailure(resp).Code {
		case codeWrongOldPassword:
			return ErrWrongOldPassword
		case codeWeakPassword:
			return ErrWeakPassword
		}
		return ErrWrongOldPassword
	default:
		return errors.Wrapf(ErrNetwork, "[Client.ChangePassword] backend returned %d", resp.StatusCode)
	}
}

// RequestPasswordReset asks the backend to email a recovery code. The
// backend answers 2xx whether or not the address belongs to an account, so
// a caller cannot use this operation to enumerate accounts; the client
// preserves that indistinguishability.
func (c *Client) RequestPasswordReset(ctx context.Context, role identity.Role, email string) error {
	resp, err := c.post(ctx, role, forgotPasswordPath, forgotPasswordRequest{Email: email})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errors.Wrapf(ErrNetwork, "[Client.RequestPasswordReset] backend returned %d", resp.StatusCode)
}

// ResetPassword completes the recovery flow with the emailed code.
func (c *Client) ResetPassword(ctx context.Context, role identity.Role, email, code, newPassword string) error {
	resp, err := c.post(ctx, role, resetPasswordPath, resetPasswordRequest{
		Email:       email,
		Code:        code,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if decodeFailure(resp).Code == codeWeakPassword {
			return ErrWeakPassword
		}
		return ErrInvalidOrExpiredCode
	default:
		return errors.Wrapf(ErrNetwork, "[Client.ResetPassword] backend returned %d", resp.StatusCode)
	}
}

// post issues a single JSON POST to "{baseURL}/{role}{path}". Transport
// failures come back wrapped in ErrNetwork; HTTP status handling is left to
// the caller. Request bodies are never logged.
func (c *Client) post(ctx context.Context, role identity.Role, path string, payload any) (*http.Response, error) {
	if !role.Valid() {
		return nil, errors.Errorf("[Client.post] invalid role %q", role)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] marshal payload")
	}

	url := fmt.Sprintf("%s/%s%s", c.baseURL, role, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] build request")
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug().Str("request_id", requestID).Str("path", path).Str("role", string(role)).Msg("Backend auth request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	return resp, nil
}

// decodeFailure pulls the failure code out of a 4xx body. A body that
// cannot be decoded yields an empty failure.
func decodeFailure(resp *http.Response) apiFailure {
	var failure apiFailure
	_ = json.NewDecoder(resp.Body).Decode(&failure)
	return failure
}
