package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"now-playing-go/config"
	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// ErrMissingRefreshToken is returned when the code exchange succeeds but
// Spotify did not hand back a refresh token.
var ErrMissingRefreshToken = errors.New("token response did not include a refresh token")

// CodeExchanger is the part of the Spotify authenticator the setup flow uses.
type CodeExchanger interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// NewAuthenticator returns an authorization-code authenticator with the
// scopes the relay needs to read playback state.
func NewAuthenticator(creds config.Spotify) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithRedirectURL(creds.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
	)
}

// SetupFlow runs the one-time authorization code exchange that produces the
// refresh token the relay is configured with.
type SetupFlow struct {
	auth    CodeExchanger
	state   string
	tokenCh chan *oauth2.Token
	errCh   chan error
}

// NewSetupFlow creates a flow with a fresh random state.
func NewSetupFlow(auth CodeExchanger) (*SetupFlow, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	return &SetupFlow{
		auth:    auth,
		state:   state,
		tokenCh: make(chan *oauth2.Token, 1),
		errCh:   make(chan error, 1),
	}, nil
}

// AuthURL is where the user has to log in.
func (f *SetupFlow) AuthURL() string {
	return f.auth.AuthURL(f.state)
}

// Handler serves /login and the callback path.
func (f *SetupFlow) Handler(callbackPath string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, f.AuthURL(), http.StatusFound)
	})
	mux.HandleFunc(callbackPath, f.handleCallback)
	return mux
}

// Wait blocks until the callback delivered a token or ctx is done.
func (f *SetupFlow) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case token := <-f.tokenCh:
		return token, nil
	case err := <-f.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *SetupFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	// Only the redirect carrying our state may end the flow; anything else
	// hitting the callback is turned away and the flow keeps waiting.
	if r.URL.Query().Get("state") != f.state {
		log.Warnf("%s %v on callback from %s, still waiting", logcolors.LogSetup, ErrStateMismatch, r.RemoteAddr)
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		f.fail(fmt.Errorf("spotify auth error: %s", errMsg))
		return
	}

	token, err := f.auth.Token(r.Context(), f.state, r)
	if err != nil {
		log.Errorf("%s Error getting refresh token: %v", logcolors.LogSetup, err)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<h1>Error</h1><p>Failed to get refresh token. Please check your terminal.</p>")
		f.fail(fmt.Errorf("exchanging code for token: %w", err))
		return
	}

	if token.RefreshToken == "" {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<h1>Error</h1><p>Spotify did not return a refresh token. Please check your terminal.</p>")
		f.fail(ErrMissingRefreshToken)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<h1>Success!</h1><p>You can close this window and check your terminal for the refresh token.</p>")

	select {
	case f.tokenCh <- token:
	default:
	}
}

func (f *SetupFlow) fail(err error) {
	select {
	case f.errCh <- err:
	default:
	}
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
