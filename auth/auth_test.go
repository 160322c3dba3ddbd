package auth

import (
	"chat-realtime/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_RejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "plain-text")
	req.Error(err)

	_, err = ComparePassword("whatever", "$argon2id$v=x$m=1,t=1,p=1$c2FsdA$aGFzaA")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "Alice", "ComplexPass123!"}, false},
		{"Username with dot and digits", RegisterRequest{"alice.b2", "Alice", "ComplexPass123!"}, false},
		{"Uppercase username", RegisterRequest{"Alice", "Alice", "ComplexPass123!"}, true},
		{"Blank display name", RegisterRequest{"alice", "   ", "ComplexPass123!"}, true},
		{"Username with spaces", RegisterRequest{"al ice", "Alice", "ComplexPass123!"}, true},
		{"Username too short", RegisterRequest{"al", "Alice", "ComplexPass123!"}, true},
		{"Missing display name", RegisterRequest{"alice", "", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice", "Alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice", "Alice", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"alice", "Alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice", "Alice", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"alice", "Alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestValidateRegister_ClassifiesFailures(t *testing.T) {
	req := require.New(t)

	// A password-only failure is an invalid password
	err := ValidateRegister(RegisterRequest{"alice", "Alice", "nouppercase123!"})
	req.ErrorIs(err, errors.ErrInvalidPassword)
	req.Contains(err.Error(), "Password(complex)")

	// Anything else is an invalid payload naming every field at fault
	err = ValidateRegister(RegisterRequest{"a b", "", "ComplexPass123!"})
	req.ErrorIs(err, errors.ErrInvalidPayload)
	req.Contains(err.Error(), "Username(handle)")
	req.Contains(err.Error(), "DisplayName(required)")
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
