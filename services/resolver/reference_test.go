package resolver

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner("secret")
	ref := &Reference{
		Config:    "eyJtYXhUb3JyZW50cyI6M30=",
		Type:      "series",
		StremioID: "tt0944947:1:2",
		TorrentID: "abc",
	}
	token, err := s.Sign(ref)
	require.NoError(t, err)

	res, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, ref, res)

	_, err = NewSigner("other").Parse(token)
	assert.Error(t, err)
	_, err = s.Parse(token + "x")
	assert.Error(t, err)
}

func TestSigner_Expired(t *testing.T) {
	s := NewSigner("secret")
	s.ttl = -time.Minute
	token, err := s.Sign(&Reference{Config: "c", Type: "movie", StremioID: "tt1", TorrentID: "t"})
	require.NoError(t, err)
	_, err = s.Parse(token)
	assert.Error(t, err)
}

func TestSigner_MissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cfg":  "c",
		"type": "movie",
		"id":   "tt1",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	data, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewSigner("secret").Parse(data)
	assert.Error(t, err)
}
