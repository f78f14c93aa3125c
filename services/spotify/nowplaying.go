package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"now-playing-go/logcolors"
	"now-playing-go/stats"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultNowPlayingURL is Spotify's "currently playing" endpoint.
	DefaultNowPlayingURL = "https://api.spotify.com/v1/me/player/currently-playing"

	maxBodyBytes = 1 << 20
)

// RelayOptions tune how a Relay reaches the now-playing endpoint.
type RelayOptions struct {
	NowPlayingURL string
	HTTPClient    *http.Client
	Stats         *stats.Stats
}

// Relay answers "what is playing right now" on behalf of the frontend.
type Relay struct {
	tokens     AccessTokenSource
	url        string
	httpClient *http.Client
	stats      *stats.Stats
}

// NewRelay creates a relay that authenticates through tokens.
func NewRelay(tokens AccessTokenSource, opts RelayOptions) *Relay {
	if opts.NowPlayingURL == "" {
		opts.NowPlayingURL = DefaultNowPlayingURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}

	return &Relay{
		tokens:     tokens,
		url:        opts.NowPlayingURL,
		httpClient: opts.HTTPClient,
		stats:      opts.Stats,
	}
}

// NowPlaying returns the current playback snapshot. Only a failed token
// exchange is returned as an error; every upstream lookup failure is
// reported as "nothing playing".
func (r *Relay) NowPlaying(ctx context.Context) (Snapshot, error) {
	token, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap, err := r.fetch(ctx, token)
	if err != nil {
		var dataErr *UpstreamDataError
		if errors.As(err, &dataErr) {
			log.Warnf("%s %v, reporting nothing playing", logcolors.LogNowPlaying, dataErr)
		}
		r.stats.RecordUpstream(stats.UpstreamFailed)
		return NotPlaying(), nil
	}

	return snap, nil
}

func (r *Relay) fetch(ctx context.Context, token AccessToken) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Snapshot{}, &UpstreamDataError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(token))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, &UpstreamDataError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		r.stats.RecordUpstream(stats.UpstreamNothingPlaying)
		log.Debugf("%s Nothing playing (204)", logcolors.LogNowPlaying)
		return NotPlaying(), nil
	}

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Snapshot{}, &UpstreamDataError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Snapshot{}, &UpstreamDataError{StatusCode: resp.StatusCode, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		r.stats.RecordUpstream(stats.UpstreamNothingPlaying)
		return NotPlaying(), nil
	}

	var header playbackHeader
	if err := json.Unmarshal(body, &header); err != nil {
		return Snapshot{}, &UpstreamDataError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding body: %w", err)}
	}

	switch {
	case len(header.Item) == 0 || string(header.Item) == "null":
		r.stats.RecordUpstream(stats.UpstreamNothingPlaying)
	case header.IsPlaying:
		r.stats.RecordUpstream(stats.UpstreamPlaying)
	default:
		r.stats.RecordUpstream(stats.UpstreamPaused)
	}

	return Snapshot{IsPlaying: header.IsPlaying, Body: json.RawMessage(body)}, nil
}
