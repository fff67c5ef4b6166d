package httpd

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

type SigConfig struct {
	Secret        string
	MaxAgeSeconds int64
}

// Sign returns hex(HMAC-SHA256(secret, body + "." + ts)).
func Sign(secret string, body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte("." + ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureMiddleware authenticates client-facing writes. The gateway callback
// is mounted outside it because the gateway cannot sign its requests.
func SignatureMiddleware(cfg SigConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				ts := r.Header.Get(HeaderTimestamp)
				sig := r.Header.Get(HeaderSignature)

				if ts == "" || sig == "" {
					writeJSON(w, http.StatusUnauthorized, errorResp{Error: "missing signature headers"})
					return
				}

				tsInt, err := strconv.ParseInt(ts, 10, 64)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorResp{Error: "invalid timestamp"})
					return
				}

				skew := time.Now().Unix() - tsInt
				if skew < 0 {
					skew = -skew
				}
				if cfg.MaxAgeSeconds > 0 && skew > cfg.MaxAgeSeconds {
					writeJSON(w, http.StatusUnauthorized, errorResp{Error: "signature expired"})
					return
				}

				bodyBytes, err := io.ReadAll(r.Body)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, errorResp{Error: "read body error"})
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				expected := Sign(cfg.Secret, bodyBytes, ts)
				if !hmac.Equal([]byte(expected), []byte(sig)) {
					writeJSON(w, http.StatusUnauthorized, errorResp{Error: "invalid signature"})
					return
				}
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
