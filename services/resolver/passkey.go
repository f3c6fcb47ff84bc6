package resolver

import (
	"bytes"
	"regexp"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
)

// ReplacePasskey rewrites tracker credentials matching from with to in every
// string outside of the info dictionary. Strings are re-encoded, so their
// length prefixes always match the new content and the info hash is kept.
func ReplacePasskey(b []byte, from *regexp.Regexp, to string) ([]byte, error) {
	var top map[string]bencode.Bytes
	if err := bencode.Unmarshal(b, &top); err != nil {
		return nil, errors.Wrap(err, "failed to decode torrent")
	}
	for k, raw := range top {
		if k == "info" {
			continue
		}
		var v any
		if err := bencode.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "failed to decode torrent key %v", k)
		}
		nb, err := bencode.Marshal(replaceStrings(v, from, to))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode torrent key %v", k)
		}
		top[k] = nb
	}
	res, err := bencode.Marshal(top)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode torrent")
	}
	if _, err := metainfo.Load(bytes.NewReader(res)); err != nil {
		return nil, errors.Wrap(err, "rewritten torrent is not valid")
	}
	return res, nil
}

func replaceStrings(v any, from *regexp.Regexp, to string) any {
	switch t := v.(type) {
	case string:
		return from.ReplaceAllLiteralString(t, to)
	case []any:
		for i := range t {
			t[i] = replaceStrings(t[i], from, to)
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = replaceStrings(t[k], from, to)
		}
		return t
	default:
		return v
	}
}
