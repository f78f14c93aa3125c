package display

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
)

// NowPlayingPath is the relay endpoint the frontend polls.
const NowPlayingPath = "/api/now-playing"

// Fetcher loads the current playback from the relay. A nil result with a nil
// error means nothing is playing.
type Fetcher interface {
	Fetch(ctx context.Context) (*spotify.CurrentlyPlaying, error)
}

// RelayFetcher polls a running relay over HTTP.
type RelayFetcher struct {
	url        string
	httpClient *http.Client
}

// NewRelayFetcher targets the relay at baseURL.
func NewRelayFetcher(baseURL string, client *http.Client) *RelayFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RelayFetcher{
		url:        strings.TrimRight(baseURL, "/") + NowPlayingPath,
		httpClient: client,
	}
}

func (f *RelayFetcher) Fetch(ctx context.Context) (*spotify.CurrentlyPlaying, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &ClientFetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &ClientFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &ClientFetchError{StatusCode: resp.StatusCode}
	}

	var playing spotify.CurrentlyPlaying
	if err := json.NewDecoder(resp.Body).Decode(&playing); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &ClientFetchError{Err: err}
	}

	if playing.Item == nil {
		return nil, nil
	}
	return &playing, nil
}
