package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type SortField string

const (
	SortFieldQuality SortField = "quality"
	SortFieldSize    SortField = "size"
	SortFieldSeeders SortField = "seeders"
	SortFieldPeers   SortField = "peers"
)

// SortKey is encoded as a two-element array: ["quality", true].
type SortKey struct {
	Field SortField
	Desc  bool
}

func (k SortKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{k.Field, k.Desc})
}

func (k *SortKey) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "sort key must be an array")
	}
	if len(raw) == 0 || len(raw) > 2 {
		return errors.Errorf("invalid sort key %s", string(b))
	}
	if err := json.Unmarshal(raw[0], &k.Field); err != nil {
		return errors.Wrap(err, "invalid sort field")
	}
	k.Desc = false
	if len(raw) == 2 {
		if err := json.Unmarshal(raw[1], &k.Desc); err != nil {
			return errors.Wrap(err, "invalid sort direction")
		}
	}
	return nil
}

// UserConfig is supplied by the caller on every request and never persisted.
type UserConfig struct {
	Qualities             []int     `json:"qualities"`
	ExcludeKeywords       []string  `json:"excludeKeywords"`
	MaxTorrents           int       `json:"maxTorrents"`
	PriotizePackTorrents  int       `json:"priotizePackTorrents"`
	PriotizeLanguages     []string  `json:"priotizeLanguages"`
	ForceCacheNextEpisode bool      `json:"forceCacheNextEpisode"`
	SortCached            []SortKey `json:"sortCached"`
	SortUncached          []SortKey `json:"sortUncached"`
	Indexers              []string  `json:"indexers"`
	IndexerTimeoutSec     int       `json:"indexerTimeoutSec"`
	Passkey               string    `json:"passkey"`
	DebridID              string    `json:"debridId"`
	DebridAPIKey          string    `json:"debridApiKey"`
	IP                    string    `json:"ip,omitempty"`
}

func DefaultUserConfig() UserConfig {
	return UserConfig{
		Qualities:            []int{0, 720, 1080},
		ExcludeKeywords:      []string{},
		MaxTorrents:          8,
		PriotizePackTorrents: 2,
		PriotizeLanguages:    []string{},
		SortCached:           []SortKey{{SortFieldQuality, true}, {SortFieldSize, true}},
		SortUncached:         []SortKey{{SortFieldSeeders, true}},
		Indexers:             []string{"all"},
		IndexerTimeoutSec:    60,
	}
}

func (c *UserConfig) HasQuality(q int) bool {
	for _, v := range c.Qualities {
		if v == q {
			return true
		}
	}
	return false
}

func (c *UserConfig) WantsIndexer(id string) bool {
	for _, v := range c.Indexers {
		if v == id || v == "all" {
			return true
		}
	}
	return false
}

// UserConfigInput holds the raw caller-supplied fields before merging.
type UserConfigInput map[string]json.RawMessage

// DecodeUserConfigInput accepts standard or url-safe base64 of a JSON object.
func DecodeUserConfigInput(encoded string) (UserConfigInput, error) {
	encoded = strings.TrimSpace(encoded)
	var (
		b   []byte
		err error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err = enc.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode user config")
	}
	in := UserConfigInput{}
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, errors.Wrap(err, "failed to parse user config")
	}
	return in, nil
}

func (in UserConfigInput) Encode() (string, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal user config")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (in UserConfigInput) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %v", key)
	}
	in[key] = b
	return nil
}

// Clone returns a shallow copy so that request-scoped keys do not leak.
func (in UserConfigInput) Clone() UserConfigInput {
	out := make(UserConfigInput, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MergeUserConfig strips immutable keys from the input and overlays the rest on defaults.
func MergeUserConfig(defaults UserConfig, in UserConfigInput, immutable []string) (*UserConfig, error) {
	in = in.Clone()
	for _, k := range immutable {
		delete(in, k)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal user config")
	}
	res := defaults.clone()
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, errors.Wrap(err, "failed to merge user config")
	}
	if res.MaxTorrents <= 0 {
		res.MaxTorrents = defaults.MaxTorrents
	}
	if res.IndexerTimeoutSec <= 0 {
		res.IndexerTimeoutSec = defaults.IndexerTimeoutSec
	}
	return &res, nil
}

func (c UserConfig) clone() UserConfig {
	res := c
	res.Qualities = append([]int(nil), c.Qualities...)
	res.ExcludeKeywords = append([]string(nil), c.ExcludeKeywords...)
	res.PriotizeLanguages = append([]string(nil), c.PriotizeLanguages...)
	res.SortCached = append([]SortKey(nil), c.SortCached...)
	res.SortUncached = append([]SortKey(nil), c.SortUncached...)
	res.Indexers = append([]string(nil), c.Indexers...)
	return res
}

func (c *UserConfig) String() string {
	return fmt.Sprintf("debrid=%v qualities=%v maxTorrents=%v indexers=%v", c.DebridID, c.Qualities, c.MaxTorrents, c.Indexers)
}
