package resolver

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func privateTorrent(t *testing.T, announce string) []byte {
	t.Helper()
	private := true
	info := metainfo.Info{
		Name:        "Movie.2020.1080p",
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Length:      1000,
		Private:     &private,
	}
	ib, err := bencode.Marshal(info)
	require.NoError(t, err)
	mi := metainfo.MetaInfo{
		InfoBytes:    ib,
		Announce:     announce,
		AnnounceList: [][]string{{announce}, {"http://backup.example/" + "OPERATORKEY" + "/announce"}},
		Comment:      "uploaded with OPERATORKEY",
	}
	var buf bytes.Buffer
	require.NoError(t, mi.Write(&buf))
	return buf.Bytes()
}

func TestReplacePasskey(t *testing.T) {
	b := privateTorrent(t, "http://tracker.example/OPERATORKEY/announce")
	orig, err := metainfo.Load(bytes.NewReader(b))
	require.NoError(t, err)

	for _, to := range []string{"short", "averymuchlongeruserpasskey0123456789"} {
		t.Run(to, func(t *testing.T) {
			res, err := ReplacePasskey(b, regexp.MustCompile("OPERATORKEY"), to)
			require.NoError(t, err)
			mi, err := metainfo.Load(bytes.NewReader(res))
			require.NoError(t, err)
			assert.Equal(t, "http://tracker.example/"+to+"/announce", mi.Announce)
			assert.Equal(t, "http://backup.example/"+to+"/announce", mi.AnnounceList[1][0])
			assert.Equal(t, "uploaded with "+to, mi.Comment)
			assert.Equal(t, orig.HashInfoBytes(), mi.HashInfoBytes())
			assert.NotContains(t, string(res), "OPERATORKEY")
		})
	}
}

func TestReplacePasskey_NoMatch(t *testing.T) {
	b := privateTorrent(t, "http://tracker.example/OTHER/announce")
	res, err := ReplacePasskey(b, regexp.MustCompile("OPERATORKEY"), "user")
	require.NoError(t, err)
	mi, err := metainfo.Load(bytes.NewReader(res))
	require.NoError(t, err)
	assert.Equal(t, "http://tracker.example/OTHER/announce", mi.Announce)
}

func TestReplacePasskey_Invalid(t *testing.T) {
	_, err := ReplacePasskey([]byte("not bencode"), regexp.MustCompile("x"), "y")
	assert.Error(t, err)
}

func TestConfig_ValidPasskey(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetPasskey("OPERATORKEY", ""))
	assert.NotNil(t, cfg.ReplacePasskey)
	assert.True(t, cfg.ValidPasskey("abc123"))
	assert.False(t, cfg.ValidPasskey(""))
	assert.False(t, cfg.ValidPasskey("abc/123"))

	require.NoError(t, cfg.SetPasskey("", "[0-9]{4}"))
	assert.Nil(t, cfg.ReplacePasskey)
	assert.True(t, cfg.ValidPasskey("1234"))
	assert.False(t, cfg.ValidPasskey("12345"))

	assert.Error(t, cfg.SetPasskey("", "("))
}
