package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

func (t ContentType) String() string {
	return string(t)
}

// MediaRequest identifies a movie or a single episode by its stremio id.
type MediaRequest struct {
	Type    ContentType
	ID      string
	Season  int
	Episode int
}

// ParseMediaRequest parses stremio ids of the form imdbId[:season:episode].
// Missing or malformed season/episode parts default to zero.
func ParseMediaRequest(contentType string, stremioID string) (*MediaRequest, error) {
	ct := ContentType(contentType)
	if ct != ContentTypeMovie && ct != ContentTypeSeries {
		return nil, errors.Errorf("unsupported type %v", contentType)
	}
	parts := strings.Split(stremioID, ":")
	if parts[0] == "" {
		return nil, errors.New("empty stremio id")
	}
	r := &MediaRequest{
		Type: ct,
		ID:   parts[0],
	}
	if ct == ContentTypeSeries {
		if len(parts) > 1 {
			r.Season = parseLeadingInt(parts[1])
		}
		if len(parts) > 2 {
			r.Episode = parseLeadingInt(parts[2])
		}
	}
	return r, nil
}

// Key returns the resolution key used for locking and caching.
func (r *MediaRequest) Key() string {
	if r.Type == ContentTypeSeries {
		return fmt.Sprintf("%v:%v:%v", r.ID, r.Season, r.Episode)
	}
	return r.ID
}

func (r *MediaRequest) IsSeries() bool {
	return r.Type == ContentTypeSeries
}

// WithEpisode returns a copy pointing at another episode of the same series.
func (r *MediaRequest) WithEpisode(season, episode int) *MediaRequest {
	return &MediaRequest{
		Type:    r.Type,
		ID:      r.ID,
		Season:  season,
		Episode: episode,
	}
}

func parseLeadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// ParseYear extracts the leading year of release strings like "2011-2019".
func ParseYear(s string) int {
	return parseLeadingInt(strings.TrimSpace(s))
}
