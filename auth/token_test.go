package auth

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var (
	secret = []byte("a-test-secret-long-enough-for-hs256")
	alice  = domain.Identity{ID: 1, Username: "alice", DisplayName: "Alice", AvatarURL: "a.png"}
)

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(alice, []string{"user"}, secret, time.Hour)
	req.NoError(err)

	// Then the token has three dot separated segments
	req.Len(splitSegments(token), 3)

	claims, err := ValidateToken(token, secret)
	req.NoError(err)
	req.Equal(alice, claims.Identity())
	req.Equal([]string{"user"}, claims.Roles)
	req.Equal(issuer, claims.Issuer)
}

func TestValidateToken_Failures(t *testing.T) {
	valid, err := GenerateToken(alice, nil, secret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(alice, nil, secret, -time.Minute)
	require.NoError(t, err)
	expiredForged, err := GenerateToken(alice, nil, []byte("another-secret"), -time.Minute)
	require.NoError(t, err)
	anonymous, err := GenerateToken(domain.Identity{Username: "ghost"}, nil, secret, time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", errors.ErrMissingCredential},
		{"blank", "   ", errors.ErrMissingCredential},
		{"not a jwt", "not-a-token", errors.ErrInvalidCredential},
		{"two segments", "abc.def", errors.ErrInvalidCredential},
		{"wrong secret", valid[:len(valid)-2] + "xx", errors.ErrInvalidCredential},
		{"expired", expired, errors.ErrExpiredCredential},
		{"expired with foreign signature", expiredForged, errors.ErrInvalidCredential},
		{"missing user id", anonymous, errors.ErrInvalidCredential},
		{"none algorithm", noneAlg, errors.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, secret)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func splitSegments(token string) []string {
	var segments []string
	start := 0
	for i, r := range token {
		if r == '.' {
			segments = append(segments, token[start:i])
			start = i + 1
		}
	}
	return append(segments, token[start:])
}
