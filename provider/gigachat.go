package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultGigaChatURL     = "https://gigachat.devices.sberbank.ru/api/v1"
	defaultGigaChatAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultGigaChatScope   = "GIGACHAT_API_PERS"

	// Tokens live 30 minutes and are refreshed a minute before expiry.
	gigaChatTokenTTL     = 30 * time.Minute
	gigaChatTokenRefresh = time.Minute
)

// GigaChatOptions configures a GigaChatProvider. Only Credentials is
// required; the URLs default to the public GigaChat endpoints.
type GigaChatOptions struct {
	Credentials string // base64 "client_id:client_secret" authorization key
	Scope       string
	Model       string
	BaseURL     string
	AuthURL     string
}

// GigaChatProvider implements the Provider interface for Sber's GigaChat.
//
// GigaChat exposes an OpenAI-compatible chat-completions API behind an OAuth
// token exchange, and its endpoints use certificates signed by the Russian
// national CA. The provider therefore:
//   - skips TLS certificate verification on both the auth and API hosts
//   - exchanges the authorization key for an access token, cached until
//     shortly before it expires
//   - injects the token into every SDK request via middleware
type GigaChatProvider struct {
	client     openai.Client
	httpClient *http.Client
	token      *gigaChatToken
	model      string
	scope      string
	baseURL    string
}

// NewGigaChatProvider creates a new GigaChat provider instance.
// Returns an error if the authorization key is missing.
func NewGigaChatProvider(opts GigaChatOptions) (*GigaChatProvider, error) {
	if opts.Credentials == "" {
		return nil, fmt.Errorf("GigaChat authorization key is required")
	}
	if opts.Scope == "" {
		opts.Scope = defaultGigaChatScope
	}
	if opts.Model == "" {
		opts.Model = "GigaChat-2"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGigaChatURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = defaultGigaChatAuthURL
	}

	httpClient := newInsecureHTTPClient()

	p := &GigaChatProvider{
		httpClient: httpClient,
		token: &gigaChatToken{
			httpClient:  httpClient,
			authURL:     opts.AuthURL,
			credentials: opts.Credentials,
			scope:       opts.Scope,
			now:         time.Now,
		},
		model:   opts.Model,
		scope:   opts.Scope,
		baseURL: opts.BaseURL,
	}

	p.client = openai.NewClient(
		option.WithBaseURL(opts.BaseURL),
		// Placeholder; the middleware replaces the header with a fresh token.
		option.WithAPIKey(opts.Credentials),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithMiddleware(p.authorize),
	)

	return p, nil
}

func newInsecureHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed GigaChat endpoints
	return &http.Client{Transport: transport}
}

// authorize attaches the current access token. A 401 drops the cached token
// so the next request exchanges the key again.
func (p *GigaChatProvider) authorize(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	token, err := p.token.get(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := next(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		p.token.invalidate()
	}
	return resp, err
}

// Chat implements Provider.Chat.
func (p *GigaChatProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	reply, err := chatCompletion(ctx, &p.client, p.model, nil, messages)
	if err != nil {
		return model.Message{}, fmt.Errorf("GigaChat request failed: %w", err)
	}
	return reply, nil
}

// GetModel implements Provider.GetModel.
func (p *GigaChatProvider) GetModel() string {
	return p.model
}

// Ping implements Provider.Ping by listing models, which also exercises
// the token exchange.
func (p *GigaChatProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("GigaChat ping failed: %w", err)
	}
	return nil
}

// gigaChatToken caches the OAuth access token shared by all connections.
type gigaChatToken struct {
	mu          sync.Mutex
	httpClient  *http.Client
	authURL     string
	credentials string
	scope       string
	now         func() time.Time

	accessToken string
	expiresAt   time.Time
}

type gigaChatTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
}

func (t *gigaChatToken) get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && t.now().Before(t.expiresAt.Add(-gigaChatTokenRefresh)) {
		return t.accessToken, nil
	}

	resp, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	t.accessToken = resp.AccessToken
	if resp.ExpiresAt > 0 {
		t.expiresAt = time.UnixMilli(resp.ExpiresAt)
	} else {
		t.expiresAt = t.now().Add(gigaChatTokenTTL)
	}
	return t.accessToken, nil
}

func (t *gigaChatToken) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accessToken = ""
}

func (t *gigaChatToken) fetch(ctx context.Context) (*gigaChatTokenResponse, error) {
	form := url.Values{"scope": {t.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build GigaChat auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+t.credentials)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GigaChat auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GigaChat auth rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out gigaChatTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode GigaChat token: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("GigaChat auth returned no access token")
	}

	return &out, nil
}
