package models

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortKeyJSON(t *testing.T) {
	var keys []SortKey
	require.NoError(t, json.Unmarshal([]byte(`[["quality",true],["size"]]`), &keys))
	assert.Equal(t, []SortKey{{SortFieldQuality, true}, {SortFieldSize, false}}, keys)

	b, err := json.Marshal(keys)
	require.NoError(t, err)
	assert.JSONEq(t, `[["quality",true],["size",false]]`, string(b))

	var k SortKey
	assert.Error(t, json.Unmarshal([]byte(`"quality"`), &k))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &k))
	assert.Error(t, json.Unmarshal([]byte(`["quality",true,1]`), &k))
}

func TestDecodeUserConfigInput(t *testing.T) {
	raw := `{"maxTorrents":3,"debridId":"realdebrid"}`
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		in, err := DecodeUserConfigInput(enc.EncodeToString([]byte(raw)))
		require.NoError(t, err)
		assert.JSONEq(t, `3`, string(in["maxTorrents"]))
	}

	_, err := DecodeUserConfigInput("!!!")
	assert.Error(t, err)
	_, err = DecodeUserConfigInput(base64.StdEncoding.EncodeToString([]byte("[1,2]")))
	assert.Error(t, err)
}

func TestUserConfigInputEncode(t *testing.T) {
	in := UserConfigInput{}
	require.NoError(t, in.Set("passkey", "abc"))
	s, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeUserConfigInput(s)
	require.NoError(t, err)
	assert.JSONEq(t, `"abc"`, string(out["passkey"]))

	c := in.Clone()
	require.NoError(t, c.Set("ip", "127.0.0.1"))
	assert.NotContains(t, in, "ip")
}

func TestMergeUserConfig(t *testing.T) {
	defaults := DefaultUserConfig()
	defaults.DebridAPIKey = "server-key"

	in := UserConfigInput{}
	require.NoError(t, in.Set("qualities", []int{2160}))
	require.NoError(t, in.Set("maxTorrents", 0))
	require.NoError(t, in.Set("debridApiKey", "user-key"))
	require.NoError(t, in.Set("sortCached", []SortKey{{SortFieldSeeders, true}}))

	uc, err := MergeUserConfig(defaults, in, []string{"debridApiKey"})
	require.NoError(t, err)
	assert.Equal(t, []int{2160}, uc.Qualities)
	assert.Equal(t, defaults.MaxTorrents, uc.MaxTorrents)
	assert.Equal(t, "server-key", uc.DebridAPIKey)
	assert.Equal(t, []SortKey{{SortFieldSeeders, true}}, uc.SortCached)
	assert.Equal(t, 60, uc.IndexerTimeoutSec)

	assert.Equal(t, []int{0, 720, 1080}, defaults.Qualities)
	assert.Contains(t, in, "debridApiKey")

	bad := UserConfigInput{"maxTorrents": json.RawMessage(`"many"`)}
	_, err = MergeUserConfig(defaults, bad, nil)
	assert.Error(t, err)
}

func TestUserConfigHelpers(t *testing.T) {
	uc := DefaultUserConfig()
	assert.True(t, uc.HasQuality(0))
	assert.False(t, uc.HasQuality(2160))
	assert.True(t, uc.WantsIndexer("yts"))

	uc.Indexers = []string{"1337x"}
	assert.True(t, uc.WantsIndexer("1337x"))
	assert.False(t, uc.WantsIndexer("yts"))
}
