package httpsec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSecret = "test-signing-secret"

// signedHeader は Slack と同じ方式で署名したヘッダを作成します
func signedHeader(secret, body string, at time.Time) http.Header {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("v0:%s:%s", ts, body)))

	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return h
}

func TestVerifySlackSignature(t *testing.T) {
	body := `{"token":"dummy-token","type":"event_callback"}`

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifySlackSignature(testSecret, signedHeader(testSecret, body, time.Now()), []byte(body)))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.Error(t, VerifySlackSignature(testSecret, signedHeader("other-secret", body, time.Now()), []byte(body)))
	})

	t.Run("tampered body", func(t *testing.T) {
		assert.Error(t, VerifySlackSignature(testSecret, signedHeader(testSecret, body, time.Now()), []byte(body+" ")))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		assert.Error(t, VerifySlackSignature(testSecret, signedHeader(testSecret, body, time.Now().Add(-time.Hour)), []byte(body)))
	})

	t.Run("missing headers", func(t *testing.T) {
		assert.Error(t, VerifySlackSignature(testSecret, http.Header{}, []byte(body)))
	})
}
