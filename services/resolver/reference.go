package resolver

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

const referenceTTL = 12 * time.Hour

// Reference points at one torrent of a stream listing. It travels signed
// inside the stream url and is resolved on click.
type Reference struct {
	Config    string
	Type      string
	StremioID string
	TorrentID string
}

type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    referenceTTL,
	}
}

func (s *Signer) Sign(r *Reference) (string, error) {
	clms := jwt.MapClaims{
		"cfg":  r.Config,
		"type": r.Type,
		"id":   r.StremioID,
		"tid":  r.TorrentID,
		"exp":  time.Now().Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, clms)
	res, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign reference")
	}
	return res, nil
}

func (s *Signer) Parse(data string) (*Reference, error) {
	token, err := jwt.Parse(data, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse reference")
	}
	clms, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid reference claims")
	}
	r := &Reference{}
	for k, dst := range map[string]*string{
		"cfg":  &r.Config,
		"type": &r.Type,
		"id":   &r.StremioID,
		"tid":  &r.TorrentID,
	} {
		v, ok := clms[k].(string)
		if !ok || v == "" {
			return nil, errors.Errorf("missing %v in reference", k)
		}
		*dst = v
	}
	return r, nil
}
