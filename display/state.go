package display

import (
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// FetchErrorMessage is what the frontend shows when the relay cannot be reached.
const FetchErrorMessage = "Failed to fetch from server. Is it running?"

// Phase is the coarse state of the display.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseIdle
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseIdle:
		return "idle"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is everything the renderer needs. CurrentTrack is nil when nothing
// is playing and is never mutated once published.
type State struct {
	Phase             Phase
	CurrentTrack      *spotify.CurrentlyPlaying
	DisplayProgressMs int
	IsInitialLoading  bool
	Error             string
}

// Track returns the playing item, or nil.
func (s State) Track() *spotify.FullTrack {
	if s.CurrentTrack == nil {
		return nil
	}
	return s.CurrentTrack.Item
}

// IsPlaying reports whether playback is running (not paused).
func (s State) IsPlaying() bool {
	return s.Track() != nil && s.CurrentTrack.Playing
}

// ClientFetchError means the relay could not be reached or answered with
// something the frontend could not use.
type ClientFetchError struct {
	StatusCode int
	Err        error
}

func (e *ClientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("fetching from relay: %v", e.Err)
}

func (e *ClientFetchError) Unwrap() error {
	return e.Err
}

// IsClientFetchError reports whether err came from talking to the relay.
func IsClientFetchError(err error) bool {
	var fetchErr *ClientFetchError
	return errors.As(err, &fetchErr)
}
