package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, pw, generatedPasswordLength)
		require.True(t, ValidPassword(pw), "generated password must satisfy its own policy: %q", pw)
		require.False(t, seen[pw], "generated passwords must not repeat")
		seen[pw] = true
	}
}

func TestValidPassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     bool
	}{
		{"all classes and long enough", "Abcdefgh1234!!!!", true},
		{"too short", "Abc123!!", false},
		{"missing special", "Abcdefgh12345678", false},
		{"missing upper", "abcdefgh1234!!!!", false},
		{"missing digit", "Abcdefghijkl!!!!", false},
		{"missing lower", "ABCDEFGH1234!!!!", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ValidPassword(tc.password))
		})
	}
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NoError(t, Verify("correct horse battery staple", hash))
	require.Error(t, Verify("wrong", hash))

	_, err = Hash("")
	require.Error(t, err)
}
