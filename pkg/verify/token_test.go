package verify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewSigner("test-secret")

	token, err := s.Generate(models.PlatformTelegram, "u42", "c7")
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformTelegram, claims.Platform)
	assert.Equal(t, "u42", claims.UserID)
	assert.Equal(t, "c7", claims.ChatID)
}

func TestTokenMutationRejected(t *testing.T) {
	s := NewSigner("test-secret")
	token, err := s.Generate(models.PlatformSlack, "u1", "c1")
	require.NoError(t, err)

	// Flipping any single character must invalidate the token.
	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		_, err := s.Parse(string(mutated))
		assert.Error(t, err, "mutation at index %d accepted", i)
	}
}

func TestTokenExpiry(t *testing.T) {
	s := NewSigner("test-secret")
	token, err := s.Generate(models.PlatformTelegram, "u1", "c1")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(TokenTTL + time.Minute) }
	_, err = s.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Generate(models.PlatformTelegram, "u1", "c1")
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestEmptySecretDisabled(t *testing.T) {
	s := NewSigner("")
	_, err := s.Generate(models.PlatformTelegram, "u1", "c1")
	assert.Error(t, err)
	_, err = s.Parse("anything")
	assert.Error(t, err)
}

func TestVerifyURL(t *testing.T) {
	assert.Equal(t, "https://bot.example.com/verify?token=abc",
		URL("https://bot.example.com/", "abc"))
}

func TestPageTemplateRenders(t *testing.T) {
	var sb strings.Builder
	err := PageTemplate.Execute(&sb, PageData{Token: "tok", Zones: CommonZones})
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "Europe/Moscow")
	assert.Contains(t, sb.String(), `"tok"`)
}
