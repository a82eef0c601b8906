package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	stateTTL = 10 * time.Minute
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides, empty means Google's.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// CodePrompt shows authURL to the user and returns the authorization code they paste back.
// An empty code means the user gave up.
type CodePrompt func(ctx context.Context, authURL string) (string, error)

// Grant is an authorization code obtained out of band, e.g. by an API caller.
type Grant struct {
	Code  string
	State string
}

type grantKey struct{}

func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

func grantFrom(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantKey{}).(Grant)
	return g, ok
}

// GoogleFederator runs the OAuth authorization-code flow against Google.
type GoogleFederator struct {
	cfg        GoogleConfig
	oauth      *oauth2.Config
	httpClient *http.Client
	prompt     CodePrompt
	logger     *logger.Logger

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewGoogleFederator(cfg GoogleConfig, prompt CodePrompt, logger *logger.Logger) *GoogleFederator {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = googleUserInfoURL
	}

	return &GoogleFederator{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		prompt: prompt,
		logger: logger.With("component", "google"),
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

// AuthURL builds the consent URL and remembers its state for one exchange.
func (g *GoogleFederator) AuthURL() (string, string, error) {
	if g.cfg.ClientID == "" {
		return "", "", newAuthError(CodeNotAllowed, "Google sign-in is not configured")
	}

	state, err := generateState()
	if err != nil {
		return "", "", errors.Wrap(err, "generate state")
	}

	g.mu.Lock()
	g.states[state] = g.now().Add(stateTTL)
	g.mu.Unlock()

	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), state, nil
}

func (g *GoogleFederator) SignIn(ctx context.Context) (*models.Identity, error) {
	if g.cfg.ClientID == "" {
		return nil, newAuthError(CodeNotAllowed, "Google sign-in is not configured")
	}

	grant, ok := grantFrom(ctx)
	if !ok {
		if g.prompt == nil {
			return nil, newAuthError(CodePopupClosed, "The sign-in window was closed")
		}
		authURL, state, err := g.AuthURL()
		if err != nil {
			return nil, err
		}
		code, err := g.prompt(ctx, authURL)
		if err != nil {
			return nil, &AuthError{Code: CodePopupClosed, Message: "The sign-in window was closed", Err: err}
		}
		grant = Grant{Code: code, State: state}
	}

	if strings.TrimSpace(grant.Code) == "" {
		return nil, newAuthError(CodePopupClosed, "The sign-in window was closed")
	}
	if !g.consumeState(grant.State) {
		return nil, newAuthError(CodeProviderFailure, "Sign-in request expired or was not issued here")
	}

	token, err := g.exchange(ctx, strings.TrimSpace(grant.Code))
	if err != nil {
		return nil, &AuthError{Code: CodeProviderFailure, Message: "Google rejected the sign-in", Err: err}
	}

	info, err := g.userInfo(ctx, token)
	if err != nil {
		return nil, &AuthError{Code: CodeProviderFailure, Message: "Could not read the Google profile", Err: err}
	}

	return &models.Identity{
		UID:         "google:" + info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
		Provider:    models.ProviderGoogle,
	}, nil
}

func (g *GoogleFederator) consumeState(state string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for s, exp := range g.states {
		if now.After(exp) {
			delete(g.states, s)
		}
	}

	if _, ok := g.states[state]; !ok {
		return false
	}
	delete(g.states, state)
	return true
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// exchange trades the authorization code for a token, using the instrumented client.
func (g *GoogleFederator) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "token exchange")
	}
	return tok, nil
}

func (g *GoogleFederator) userInfo(ctx context.Context, tok *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create userinfo request")
	}
	req.Header.Set("Accept", "application/json")

	client := g.oauth.Client(context.WithValue(ctx, oauth2.HTTPClient, g.httpClient), tok)
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "userinfo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "decode userinfo")
	}
	if info.Sub == "" {
		return nil, errors.New("userinfo: missing subject")
	}
	return &info, nil
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
