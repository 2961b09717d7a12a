package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSHA256_KnownDigest(t *testing.T) {
	// sha256("secret")
	assert.Equal(t,
		"2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b",
		HashSHA256("secret"))
}

func TestHashSHA256_Deterministic(t *testing.T) {
	assert.Equal(t, HashSHA256("same-password"), HashSHA256("same-password"))
}

func TestCheckPassword(t *testing.T) {
	passwords := []string{"secret", "p@ssw0rd!", "", "ünïcödé-pass", "a very long passphrase with spaces"}

	for _, p := range passwords {
		hash, err := HashPassword(p)
		require.NoError(t, err)
		assert.True(t, CheckPassword(p, hash), "password %q should verify", p)
		assert.False(t, CheckPassword(p+"x", hash), "password %q+x should not verify", p)
	}
}

func TestCheckPassword_Bcrypt(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}
	hash, err := hasher.Hash("testpass")
	require.NoError(t, err)

	assert.True(t, CheckPassword("testpass", hash))
	assert.False(t, CheckPassword("wrongpass", hash))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("")
	require.NoError(t, err)
	assert.IsType(t, SHA256Hasher{}, h)

	h, err = NewHasher("BCRYPT")
	require.NoError(t, err)
	assert.IsType(t, BcryptHasher{}, h)

	_, err = NewHasher("md5")
	assert.Error(t, err)
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestValidateSignup(t *testing.T) {
	existing := map[string]bool{"taken": true}
	exists := func(u string) (bool, error) { return existing[u], nil }

	tests := []struct {
		name      string
		req       SignupRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "empty username",
			req:       SignupRequest{Username: "", Password: "x", ConfirmPassword: "y"},
			wantField: "username",
			wantMsg:   "Username cannot be empty.",
		},
		{
			name:      "existing username with valid password",
			req:       SignupRequest{Username: "taken", Password: "goodpassword", ConfirmPassword: "goodpassword"},
			wantField: "username",
			wantMsg:   "Username already exists.",
		},
		{
			name:      "existing username with invalid password",
			req:       SignupRequest{Username: "taken", Password: "a", ConfirmPassword: "b"},
			wantField: "username",
			wantMsg:   "Username already exists.",
		},
		{
			name:      "confirmation mismatch checked before length",
			req:       SignupRequest{Username: "new", Password: "abc", ConfirmPassword: "abd"},
			wantField: "confirm_password",
			wantMsg:   "Passwords do not match.",
		},
		{
			name:      "short password",
			req:       SignupRequest{Username: "new", Password: "12345", ConfirmPassword: "12345"},
			wantField: "password",
			wantMsg:   "Password must be at least 6 characters long.",
		},
		{
			name:      "multibyte password counted in characters",
			req:       SignupRequest{Username: "new", Password: "ééé", ConfirmPassword: "ééé"},
			wantField: "password",
			wantMsg:   "Password must be at least 6 characters long.",
		},
		{
			name: "valid",
			req:  SignupRequest{Username: "new", Password: "123456", ConfirmPassword: "123456"},
		},
		{
			name: "valid multibyte password",
			req:  SignupRequest{Username: "new", Password: "éééééé", ConfirmPassword: "éééééé"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignup(tt.req, exists)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, tt.wantMsg, verr.Message)
		})
	}
}

func TestValidateSignup_CaseSensitiveUsernames(t *testing.T) {
	exists := func(u string) (bool, error) { return u == "Alice", nil }
	err := ValidateSignup(SignupRequest{Username: "alice", Password: "123456", ConfirmPassword: "123456"}, exists)
	assert.NoError(t, err)
}

func TestValidateSignup_LookupError(t *testing.T) {
	boom := errors.New("boom")
	err := ValidateSignup(SignupRequest{Username: "u", Password: "123456", ConfirmPassword: "123456"},
		func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
