package apitest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// generateCSRF binds a double-submit token to an access token.
func generateCSRF(secret, accessToken string, now time.Time) string {
	msg := []byte(accessToken + ":" + strconv.FormatInt(now.UnixNano(), 10))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	payload := append(msg, mac.Sum(nil)...)
	return base64.RawURLEncoding.EncodeToString(payload)
}

func verifyCSRF(secret, accessToken, token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return err
	}
	if len(raw) <= sha256.Size {
		return errors.New("token too short")
	}
	msg := raw[:len(raw)-sha256.Size]
	sig := raw[len(raw)-sha256.Size:]
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return errors.New("bad signature")
	}
	i := strings.LastIndexByte(string(msg), ':')
	if i < 0 || string(msg[:i]) != accessToken {
		return errors.New("token bound to another session")
	}
	return nil
}

// randomToken returns n random bytes, URL-safe encoded. Used for access
// tokens, the signing secret and transaction ids.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
