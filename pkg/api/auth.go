package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// slackTimestampTolerance is the replay window the Events API allows.
const slackTimestampTolerance = 300 * time.Second

// secureCompare is a constant-time string equality check.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// slackSignatureValid checks the v0 request signature: HMAC-SHA256 of
// "v0:<ts>:<raw_body>" with the signing secret. Timestamps outside the
// replay window are rejected before any crypto.
func slackSignatureValid(secret, timestamp string, body []byte, signature string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(ts, 0))
	if age > slackTimestampTolerance || age < -slackTimestampTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return secureCompare(expected, signature)
}

// whatsappSignatureValid checks the Graph webhook signature header
// "sha256=<hex HMAC-SHA256 of raw body>" with the app secret.
func whatsappSignatureValid(secret string, body []byte, header string) bool {
	provided, found := strings.CutPrefix(header, "sha256=")
	if !found {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return secureCompare(hex.EncodeToString(mac.Sum(nil)), provided)
}
