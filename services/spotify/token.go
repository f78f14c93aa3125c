package spotify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"now-playing-go/circuitbreaker"
	"now-playing-go/config"
	"now-playing-go/logcolors"
	"now-playing-go/stats"

	log "github.com/sirupsen/logrus"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Refresh a cached token when it has less than this time remaining
const defaultRefreshThreshold = 5 * time.Minute

// AccessToken is a short-lived bearer credential. It formats as
// "[redacted]" so it cannot leak through logs.
type AccessToken string

func (t AccessToken) String() string {
	return "[redacted]"
}

func (t AccessToken) GoString() string {
	return `spotify.AccessToken("[redacted]")`
}

// AccessTokenSource hands out access tokens for upstream calls.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (AccessToken, error)
}

// TokenProviderOptions tune how a TokenProvider talks to the token endpoint.
type TokenProviderOptions struct {
	HTTPClient *http.Client
	Breaker    *circuitbreaker.CircuitBreaker
	// CacheTokens keeps the exchanged token until it nears expiry instead of
	// exchanging on every call.
	CacheTokens      bool
	RefreshThreshold time.Duration
	Stats            *stats.Stats
}

// TokenProvider exchanges the long-lived refresh token for access tokens.
type TokenProvider struct {
	oauth        oauth2.Config
	refreshToken string
	httpClient   *http.Client
	breaker      *circuitbreaker.CircuitBreaker
	stats        *stats.Stats

	cacheTokens      bool
	refreshThreshold time.Duration
	now              func() time.Time

	mu     sync.RWMutex
	cached *oauth2.Token
}

// NewTokenProvider builds a provider from the immutable Spotify credentials.
func NewTokenProvider(creds config.Spotify, opts TokenProviderOptions) *TokenProvider {
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.RefreshThreshold <= 0 {
		opts.RefreshThreshold = defaultRefreshThreshold
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}

	return &TokenProvider{
		oauth: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		refreshToken:     creds.RefreshToken,
		httpClient:       opts.HTTPClient,
		breaker:          opts.Breaker,
		stats:            opts.Stats,
		cacheTokens:      opts.CacheTokens,
		refreshThreshold: opts.RefreshThreshold,
		now:              time.Now,
	}
}

// AccessToken returns a valid access token, exchanging the refresh token when
// there is no usable cached one.
func (p *TokenProvider) AccessToken(ctx context.Context) (AccessToken, error) {
	if !p.cacheTokens {
		tok, err := p.exchange(ctx)
		if err != nil {
			return "", err
		}
		return AccessToken(tok.AccessToken), nil
	}

	p.mu.RLock()
	if p.cached != nil && !p.expiringSoon() {
		defer p.mu.RUnlock()
		p.stats.RecordTokenCacheHit()
		return AccessToken(p.cached.AccessToken), nil
	}
	p.mu.RUnlock()

	return p.refresh(ctx)
}

// TokenStatus returns the cached token's expiry for monitoring.
func (p *TokenProvider) TokenStatus() (expiry time.Time, cached bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cached == nil {
		return time.Time{}, false
	}
	return p.cached.Expiry, true
}

func (p *TokenProvider) refresh(ctx context.Context) (AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if p.cached != nil && !p.expiringSoon() {
		return AccessToken(p.cached.AccessToken), nil
	}

	tok, err := p.exchange(ctx)
	if err != nil {
		p.cached = nil
		return "", err
	}
	p.cached = tok

	if !tok.Expiry.IsZero() {
		log.Infof("%s Access token cached, expires in %v", logcolors.LogTokenCache, tok.Expiry.Sub(p.now()).Round(time.Second))
	}
	return AccessToken(tok.AccessToken), nil
}

// expiringSoon must be called with at least a read lock held.
func (p *TokenProvider) expiringSoon() bool {
	if p.cached.Expiry.IsZero() {
		return true
	}
	return p.now().Add(p.refreshThreshold).After(p.cached.Expiry)
}

func (p *TokenProvider) exchange(ctx context.Context) (*oauth2.Token, error) {
	if p.breaker != nil && !p.breaker.Allow() {
		log.Warnf("%s Token exchange skipped, retry in %v", logcolors.LogToken, p.breaker.TimeUntilRetry().Round(time.Second))
		return nil, &UpstreamAuthError{Err: circuitbreaker.ErrCircuitOpen}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()

	// The caller giving up says nothing about the token endpoint.
	callerGone := err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled))
	if !callerGone {
		p.stats.RecordTokenExchange(err == nil)
	}

	if err != nil {
		if p.breaker != nil && !callerGone {
			p.breaker.RecordFailure()
		}
		authErr := &UpstreamAuthError{Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
			// The retrieve error echoes the response body; keep only the OAuth code.
			authErr.Err = errors.New(retrieveErrorCode(retrieveErr))
		}
		log.Errorf("%s %v", logcolors.LogAuthError, authErr)
		return nil, authErr
	}

	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
	log.Debugf("%s Exchanged refresh token for access token", logcolors.LogToken)
	return tok, nil
}

func retrieveErrorCode(err *oauth2.RetrieveError) string {
	if err.ErrorCode != "" {
		return "oauth2: " + err.ErrorCode
	}
	return "oauth2: cannot fetch token: " + err.Response.Status
}
