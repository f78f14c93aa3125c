package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"now-playing-go/stats"
)

type staticTokens struct {
	token AccessToken
	err   error
}

func (s staticTokens) AccessToken(ctx context.Context) (AccessToken, error) {
	return s.token, s.err
}

const playingBody = `{"timestamp":1700000000000,"context":null,"progress_ms":42000,"item":{"album":{"name":"Random Access Memories","release_date":"2013-05-17","images":[{"url":"https://i.scdn.co/image/abc","height":640,"width":640}]},"artists":[{"name":"Daft Punk"},{"name":"Pharrell Williams"}],"duration_ms":369000,"explicit":false,"id":"69kOkLUCkxIZYexIgSG8rq","name":"Get Lucky","popularity":82,"uri":"spotify:track:69kOkLUCkxIZYexIgSG8rq"},"currently_playing_type":"track","is_playing":true}`

func newNowPlayingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" {
			t.Errorf("Expected bearer authorization, got %q", got)
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRelay(url string, tokens AccessTokenSource) (*Relay, *stats.Stats) {
	s := stats.New()
	return NewRelay(tokens, RelayOptions{NowPlayingURL: url, Stats: s}), s
}

func TestNowPlaying_PassesThroughVerbatim(t *testing.T) {
	server := newNowPlayingServer(t, http.StatusOK, playingBody)
	relay, s := newTestRelay(server.URL, staticTokens{token: "access-token"})

	snap, err := relay.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying() error = %v", err)
	}

	if !snap.IsPlaying {
		t.Error("Expected IsPlaying to be true")
	}
	if string(snap.Bytes()) != playingBody {
		t.Errorf("Expected body to be passed through verbatim\n got: %s\nwant: %s", snap.Bytes(), playingBody)
	}
	if s.UpstreamPlayingCount.Load() != 1 {
		t.Errorf("Expected 1 playing outcome, got %d", s.UpstreamPlayingCount.Load())
	}
}

func TestNowPlaying_NotPlayingStatuses(t *testing.T) {
	statuses := []int{
		http.StatusNoContent,
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
	}

	for _, status := range statuses {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			server := newNowPlayingServer(t, status, `{"error":{"status":401,"message":"The access token expired"}}`)
			relay, _ := newTestRelay(server.URL, staticTokens{token: "access-token"})

			// Repeated calls give the same answer.
			for i := 0; i < 2; i++ {
				snap, err := relay.NowPlaying(context.Background())
				if err != nil {
					t.Fatalf("NowPlaying() error = %v", err)
				}
				if snap.IsPlaying || snap.HasBody() {
					t.Errorf("Expected not-playing snapshot, got %+v", snap)
				}
				if got := string(snap.Bytes()); got != `{"is_playing":false}` {
					t.Errorf("Expected {\"is_playing\":false}, got %s", got)
				}
			}
		})
	}
}

func TestNowPlaying_NothingPlayingWithoutItem(t *testing.T) {
	server := newNowPlayingServer(t, http.StatusOK, `{"is_playing":false,"item":null,"progress_ms":0}`)
	relay, s := newTestRelay(server.URL, staticTokens{token: "access-token"})

	snap, err := relay.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying() error = %v", err)
	}
	if snap.IsPlaying {
		t.Error("Expected IsPlaying to be false")
	}
	if s.UpstreamNothingPlayingCount.Load() != 1 {
		t.Errorf("Expected 1 nothing-playing outcome, got %d", s.UpstreamNothingPlayingCount.Load())
	}
}

func TestNowPlaying_PausedTrack(t *testing.T) {
	body := `{"is_playing":false,"progress_ms":1000,"item":{"name":"Paused","duration_ms":1000}}`
	server := newNowPlayingServer(t, http.StatusOK, body)
	relay, s := newTestRelay(server.URL, staticTokens{token: "access-token"})

	snap, err := relay.NowPlaying(context.Background())
	if err != nil {
		t.Fatalf("NowPlaying() error = %v", err)
	}
	if string(snap.Bytes()) != body {
		t.Errorf("Expected paused body to pass through, got %s", snap.Bytes())
	}
	if s.UpstreamPausedCount.Load() != 1 {
		t.Errorf("Expected 1 paused outcome, got %d", s.UpstreamPausedCount.Load())
	}
}

func TestNowPlaying_UpstreamDataErrorsFold(t *testing.T) {
	tests := []struct {
		name string
		url  func(t *testing.T) string
	}{
		{
			name: "invalid JSON",
			url: func(t *testing.T) string {
				return newNowPlayingServer(t, http.StatusOK, `{"is_playing":`).URL
			},
		},
		{
			name: "unreachable upstream",
			url: func(t *testing.T) string {
				server := httptest.NewServer(http.NotFoundHandler())
				server.Close()
				return server.URL
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay, s := newTestRelay(tt.url(t), staticTokens{token: "access-token"})

			snap, err := relay.NowPlaying(context.Background())
			if err != nil {
				t.Fatalf("NowPlaying() error = %v", err)
			}
			if snap.HasBody() {
				t.Errorf("Expected not-playing snapshot, got %s", snap.Bytes())
			}
			if s.UpstreamErrorCount.Load() != 1 {
				t.Errorf("Expected 1 upstream error, got %d", s.UpstreamErrorCount.Load())
			}
		})
	}
}

func TestNowPlaying_TokenFailure(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tokenErr := &UpstreamAuthError{StatusCode: http.StatusBadRequest, Err: errors.New("oauth2: invalid_grant")}
	relay, _ := newTestRelay(server.URL, staticTokens{err: tokenErr})

	_, err := relay.NowPlaying(context.Background())

	var authErr *UpstreamAuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected *UpstreamAuthError, got %T: %v", err, err)
	}
	if ErrorKind(err) != KindUpstreamAuth {
		t.Errorf("Expected kind %q, got %q", KindUpstreamAuth, ErrorKind(err))
	}
	if called {
		t.Error("Expected no upstream call without a token")
	}
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NotPlaying())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"is_playing":false}` {
		t.Errorf("Expected {\"is_playing\":false}, got %s", data)
	}

	data, err = json.Marshal(Snapshot{IsPlaying: true, Body: json.RawMessage(playingBody)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != playingBody {
		t.Errorf("Expected body unchanged, got %s", data)
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(errors.New("boom")); got != KindInternal {
		t.Errorf("Expected %q, got %q", KindInternal, got)
	}
	wrapped := fmt.Errorf("relay: %w", &UpstreamAuthError{Err: errors.New("x")})
	if got := ErrorKind(wrapped); got != KindUpstreamAuth {
		t.Errorf("Expected %q, got %q", KindUpstreamAuth, got)
	}
}
