package auth

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"time"

	"framevault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// InviteClaims binds an invite to one workspace and one invitee email.
type InviteClaims struct {
	jwt.RegisteredClaims
	WorkspaceID  string
	InviteeEmail string
}

// GenerateInviteToken mints a signed invite token for inviteeEmail to join
// workspaceID, expiring after validity.
func GenerateInviteToken(workspaceID, inviteeEmail string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		WorkspaceID:  workspaceID,
		InviteeEmail: inviteeEmail,
	})

	return token.SignedString(secretKey)
}

// ParseInviteToken verifies the signature on an invite token and returns
// its claims. An expired token is ErrorExpired, any other verification
// failure is ErrorInvalidToken.
func ParseInviteToken(tokenString string, secretKey []byte) (*InviteClaims, error) {
	claims := &InviteClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrorExpired
		}
		return nil, common.ErrorInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrorInvalidToken
	}

	return claims, nil
}

// codeLen is the length of the human-readable invite code.
const codeLen = 10

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// InviteCode derives the short shareable code from a signed token: a
// one-way transform, so holding the code reveals nothing about the token
// contents. Tokens differ per issue (issued-at), so codes do too.
func InviteCode(token string) string {
	sum := sha256.Sum256([]byte(token))
	return codeEncoding.EncodeToString(sum[:])[:codeLen]
}
