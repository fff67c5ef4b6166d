package httpd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignatureMiddleware(t *testing.T) {
	const secret = "s3cret"
	body := `{"checkout_request_id":"ws_CO_1"}`
	now := strconv.FormatInt(time.Now().Unix(), 10)
	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusNoContent)
	})
	h := SignatureMiddleware(SigConfig{Secret: secret, MaxAgeSeconds: 300})(next)

	cases := []struct {
		name   string
		method string
		ts     string
		sig    string
		want   int
	}{
		{"valid", http.MethodPost, now, Sign(secret, []byte(body), now), http.StatusNoContent},
		{"missing headers", http.MethodPost, "", "", http.StatusUnauthorized},
		{"bad timestamp", http.MethodPost, "yesterday", "abc", http.StatusUnauthorized},
		{"expired", http.MethodPost, old, Sign(secret, []byte(body), old), http.StatusUnauthorized},
		{"wrong secret", http.MethodPost, now, Sign("other", []byte(body), now), http.StatusUnauthorized},
		{"get passes", http.MethodGet, "", "", http.StatusNoContent},
	}
	for _, c := range cases {
		seen = ""
		req := httptest.NewRequest(c.method, "/mpesa/stk-query", strings.NewReader(body))
		if c.ts != "" {
			req.Header.Set(HeaderTimestamp, c.ts)
		}
		if c.sig != "" {
			req.Header.Set(HeaderSignature, c.sig)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
		if c.name == "valid" && seen != body {
			t.Errorf("body not restored for next handler: %q", seen)
		}
	}
}
