// Package verify issues and validates the signed web-verification
// tokens and serves the timezone selection page model.
package verify

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// TokenTTL bounds how long a verification link stays usable.
const TokenTTL = 24 * time.Hour

// Strict decoding rejects nonzero padding bits, so no two distinct
// token strings decode to the same payload.
var tokenEncoding = base64.RawURLEncoding.Strict()

// Claims is the verified content of a token.
type Claims struct {
	Platform models.Platform
	UserID   string
	ChatID   string
}

// Signer builds and checks tokens. Payload layout:
// platform|user_id|chat_id|expires_unix|nonce|hmac16, where hmac16 is
// the first 16 hex chars of the HMAC-SHA256 over the five fields. The
// whole payload travels base64url-encoded. Tokens are signed, never
// stored.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer; an empty secret disables token issuance
// and makes every parse fail.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Generate issues a token for the user. Fails when no secret is set.
func (s *Signer) Generate(platform models.Platform, userID, chatID string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("verify token secret not configured")
	}
	nonceBytes := make([]byte, 8)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	expires := s.now().Add(TokenTTL).Unix()
	body := strings.Join([]string{
		string(platform), userID, chatID,
		strconv.FormatInt(expires, 10),
		hex.EncodeToString(nonceBytes),
	}, "|")

	payload := body + "|" + s.sign(body)
	return tokenEncoding.EncodeToString([]byte(payload)), nil
}

// Parse validates a token and returns its claims. Any mutation,
// expiry, or missing secret yields an error.
func (s *Signer) Parse(token string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, fmt.Errorf("verify token secret not configured")
	}
	raw, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, fmt.Errorf("malformed token encoding")
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 6 {
		return Claims{}, fmt.Errorf("malformed token payload")
	}
	body := strings.Join(parts[:5], "|")
	if !hmac.Equal([]byte(s.sign(body)), []byte(parts[5])) {
		return Claims{}, fmt.Errorf("token signature mismatch")
	}

	expires, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("malformed token expiry")
	}
	if s.now().Unix() > expires {
		return Claims{}, fmt.Errorf("token expired")
	}

	platform := models.Platform(parts[0])
	if !platform.Valid() {
		return Claims{}, fmt.Errorf("unknown token platform")
	}
	return Claims{Platform: platform, UserID: parts[1], ChatID: parts[2]}, nil
}

// URL renders the verification link for a token.
func URL(baseURL, token string) string {
	return strings.TrimSuffix(baseURL, "/") + "/verify?token=" + token
}

func (s *Signer) sign(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
