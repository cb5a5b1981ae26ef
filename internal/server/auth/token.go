package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blobvault/blobvault/internal/shared"
)

// Claims carries the session identity embedded in a signed token: the
// access key and the level the token was issued at.
type Claims struct {
	jwt.RegisteredClaims
	ID          string `json:"id"`
	AccessLevel string `json:"access_level"`
}

// SignToken produces a compact token embedding the session's access key
// and level, signed with the server-wide secret (HMAC-SHA-384).
func SignToken(s *Session, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{
		ID:          s.AccessKey,
		AccessLevel: s.AccessLevel.String(),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken checks the signature and returns the embedded access key and
// level. A structurally broken token yields ErrorMalformedToken; a token
// that parses but fails verification yields ErrorInvalidToken.
func VerifyToken(tokenString string, secretKey []byte) (string, Level, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS384.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return "", LevelPublic, fmt.Errorf("%w: %v", shared.ErrorMalformedToken, err)
		}
		return "", LevelPublic, fmt.Errorf("%w: %v", shared.ErrorInvalidToken, err)
	}

	if !token.Valid || claims.ID == "" {
		return "", LevelPublic, shared.ErrorInvalidToken
	}

	return claims.ID, LevelFromString(claims.AccessLevel), nil
}
