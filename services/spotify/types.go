package spotify

import (
	"encoding/json"
)

var notPlayingBody = []byte(`{"is_playing":false}`)

// Snapshot is the playback state produced by a single relay call.
type Snapshot struct {
	IsPlaying bool
	// Body is the upstream "currently playing" document, kept verbatim. It is
	// empty when nothing is playing.
	Body json.RawMessage
}

// NotPlaying is the snapshot reported when there is nothing to show.
func NotPlaying() Snapshot {
	return Snapshot{}
}

// HasBody reports whether the snapshot carries an upstream document.
func (s Snapshot) HasBody() bool {
	return len(s.Body) > 0
}

// Bytes returns the JSON document the relay serves for this snapshot.
func (s Snapshot) Bytes() []byte {
	if s.HasBody() {
		return s.Body
	}
	return notPlayingBody
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return s.Bytes(), nil
}

// playbackHeader is the slice of the upstream document the relay inspects.
type playbackHeader struct {
	IsPlaying bool            `json:"is_playing"`
	Item      json.RawMessage `json:"item"`
}
