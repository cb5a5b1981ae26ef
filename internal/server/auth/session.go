package auth

import (
	"fmt"
	"time"

	"github.com/blobvault/blobvault/internal/shared"
)

const (
	accessKeyBytes = 20
	secretKeyBytes = 40
)

// Session binds an opaque access key to a capability level and a recency
// timestamp. The access key doubles as the session id and as the owner id
// on stored objects.
//
// SecretKey is persisted with the record but is not used by the signing
// path, which signs with the server-wide secret.
type Session struct {
	AccessKey   string `json:"access_key"`
	AccessLevel Level  `json:"access_level"`
	LastUsed    int64  `json:"last_used"`
	SecretKey   string `json:"secret_key"`
}

// NewSession creates a Public-level session with fresh random keys.
func NewSession() (*Session, error) {
	accessKey, err := shared.MakeRandBase64String(accessKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("access key: %w", err)
	}

	secretKey, err := shared.MakeRandBase64String(secretKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}

	return &Session{
		AccessKey:   accessKey,
		AccessLevel: LevelPublic,
		LastUsed:    time.Now().Unix(),
		SecretKey:   secretKey,
	}, nil
}

// Touch refreshes the recency timestamp.
func (s *Session) Touch() {
	s.LastUsed = time.Now().Unix()
}
