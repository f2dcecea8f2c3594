package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/handoff/handoff-server/internal/model"
)

var ErrInvalidSignature = errors.New("invalid or expired download link")

const signerIssuer = "handoff-storage"

// ObjectClaims authorise one download of one object.
type ObjectClaims struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues short-lived download URLs. Each URL carries a random id,
// so it cannot be derived from the storage path.
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewSigner(secret, baseURL string, ttl time.Duration) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Signer) Sign(path, name string) (model.SignedURL, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := ObjectClaims{
		Path: path,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    signerIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return model.SignedURL{}, fmt.Errorf("sign object url: %w", err)
	}

	return model.SignedURL{
		URL:       s.baseURL + "/storage/object?token=" + url.QueryEscape(signed),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Signer) Verify(token string) (*ObjectClaims, error) {
	var claims ObjectClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(signerIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Path == "" {
		return nil, ErrInvalidSignature
	}
	return &claims, nil
}
