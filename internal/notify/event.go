package notify

import (
	"encoding/json"

	"github.com/clipcast/clipcast/internal/common/cnst"
)

// SharedVideoPayload is the wire payload of a share_video event
type SharedVideoPayload struct {
	YoutubeID   string `json:"youtubeId"`
	Title       string `json:"title"`
	SharerEmail string `json:"sharerEmail"`
}

// Event is one immutable notification produced per triggering business
// action. It is never persisted; it exists only to be published.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewSharedVideoEvent builds the share_video event for the given payload
func NewSharedVideoEvent(payload SharedVideoPayload) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Name:    cnst.EventShareVideo,
		Payload: data,
	}, nil
}
