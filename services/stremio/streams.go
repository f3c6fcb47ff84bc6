package stremio

import (
	"github.com/webtor-io/stremio-resolver/models"
)

// NewStreamsResponse converts resolved entries to stremio stream items.
// P2P entries carry an info hash instead of an url.
func NewStreamsResponse(entries []models.StreamEntry) *StreamsResponse {
	res := &StreamsResponse{
		Streams: make([]StreamItem, 0, len(entries)),
	}
	for _, e := range entries {
		si := StreamItem{
			Name:  e.Name,
			Title: e.Title,
			Url:   e.URL,
		}
		if e.InfoHash != "" && e.URL == "" {
			si.InfoHash = e.InfoHash
			if e.FileIdx >= 0 {
				idx := e.FileIdx
				si.FileIdx = &idx
			}
		}
		if e.URL != "" && !e.Disabled {
			si.BehaviorHints = &StreamBehaviorHints{NotWebReady: true}
		}
		res.Streams = append(res.Streams, si)
	}
	return res
}
