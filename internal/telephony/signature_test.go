package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func sign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/call-status", RequireTwilioSignature(token, "https://cc.example.com"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireTwilioSignature_AcceptsValid(t *testing.T) {
	params := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sign("tok", "https://cc.example.com/webhooks/twilio/call-status", params))

	w := httptest.NewRecorder()
	signedRouter("tok").ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireTwilioSignature_RejectsTampered(t *testing.T) {
	params := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	sig := sign("tok", "https://cc.example.com/webhooks/twilio/call-status", params)
	params.Set("CallStatus", "failed")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)

	w := httptest.NewRecorder()
	signedRouter("tok").ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireTwilioSignature_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader("CallSid=CA1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	signedRouter("tok").ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireTwilioSignature_DisabledWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader("CallSid=CA1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	signedRouter("").ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
