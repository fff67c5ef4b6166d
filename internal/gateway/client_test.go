package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mpesa_backend/internal/config"
	"mpesa_backend/internal/domain"

	"github.com/shopspring/decimal"
)

type fakeDaraja struct {
	tokenStatus int
	tokenBody   string
	pushStatus  int
	pushBody    string
	queryBody   string

	tokenCalls int
	lastAuth   string
	lastBearer string
	lastPush   map[string]any
	lastQuery  map[string]any
}

func (f *fakeDaraja) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.URL.Query().Get("grant_type"))
		}
		f.lastAuth = r.Header.Get("Authorization")
		status := f.tokenStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		body := f.tokenBody
		if body == "" {
			body = `{"access_token":"tok-123","expires_in":"3599"}`
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		f.lastBearer = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&f.lastPush)
		status := f.pushStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(f.pushBody))
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		f.lastBearer = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&f.lastQuery)
		w.Write([]byte(f.queryBody))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDaraja) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Mpesa{
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		Passkey:           "P1",
		BusinessShortCode: "174379",
		CallbackURL:       "https://example.com/mpesa/callback",
		BaseURL:           srv.URL,
		Timezone:          "UTC",
	}
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewClient(cfg, srv.Client()).WithClock(func() time.Time { return fixed })
}

func TestAccessTokenUsesBasicAuth(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f)

	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "tok-123" {
		t.Errorf("token = %q", tok)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("ck:cs"))
	if f.lastAuth != want {
		t.Errorf("Authorization = %q, want %q", f.lastAuth, want)
	}
}

func TestAccessTokenErrors(t *testing.T) {
	cases := map[string]*fakeDaraja{
		"missing field": {tokenBody: `{"expires_in":"3599"}`},
		"bad status":    {tokenStatus: http.StatusUnauthorized, tokenBody: `{"errorMessage":"Invalid credentials"}`},
		"not json":      {tokenBody: `<html>`},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, f)
			_, err := c.AccessToken(context.Background())
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
		})
	}
}

func TestAccessTokenIgnoresExpiresInType(t *testing.T) {
	c := newTestClient(t, &fakeDaraja{tokenBody: `{"access_token":"tok-9","expires_in":3599}`})

	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "tok-9" {
		t.Errorf("token = %q", tok)
	}
}

func TestAccessTokenTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte(`{"access_token":"to`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.Mpesa{ConsumerKey: "ck", ConsumerSecret: "cs", BaseURL: srv.URL}, srv.Client())
	_, err := c.AccessToken(context.Background())

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !strings.Contains(err.Error(), "read token response") {
		t.Errorf("err = %v, want a read error rather than a parse error", err)
	}
}

func TestPushBuildsGatewayBody(t *testing.T) {
	f := &fakeDaraja{pushBody: `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`}
	c := newTestClient(t, f)

	resp, err := c.Push(context.Background(), PushRequest{
		PhoneNumber:      "0712 345 678",
		Amount:           decimal.NewFromInt(100),
		AccountReference: "INV-1",
		TransactionDesc:  "Invoice 1",
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if resp.String("CheckoutRequestID") != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", resp.String("CheckoutRequestID"))
	}
	if f.lastBearer != "Bearer tok-123" {
		t.Errorf("Authorization = %q", f.lastBearer)
	}

	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379P120240101120000"))
	checks := map[string]any{
		"BusinessShortCode": "174379",
		"Password":          wantPassword,
		"Timestamp":         "20240101120000",
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            float64(100),
		"PartyA":            "254712345678",
		"PartyB":            "174379",
		"PhoneNumber":       "254712345678",
		"CallBackURL":       "https://example.com/mpesa/callback",
		"AccountReference":  "INV-1",
		"TransactionDesc":   "Invoice 1",
	}
	for k, want := range checks {
		if got := f.lastPush[k]; got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
}

func TestPushGatewayError(t *testing.T) {
	f := &fakeDaraja{pushStatus: http.StatusBadRequest, pushBody: `{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`}
	c := newTestClient(t, f)

	_, err := c.Push(context.Background(), PushRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1), AccountReference: "A", TransactionDesc: "B"})
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest || !strings.Contains(gwErr.Error(), "Invalid PhoneNumber") {
		t.Errorf("unexpected error: %v", gwErr)
	}
}

func TestPushTokenFailureStopsBeforePush(t *testing.T) {
	f := &fakeDaraja{tokenBody: `{}`}
	c := newTestClient(t, f)

	_, err := c.Push(context.Background(), PushRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1)})
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if f.lastPush != nil {
		t.Error("push endpoint must not be called without a token")
	}
}

func TestQueryFetchesFreshTokenEachCall(t *testing.T) {
	f := &fakeDaraja{queryBody: `{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user","CheckoutRequestID":"ws_CO_1"}`}
	c := newTestClient(t, f)

	for i := 0; i < 2; i++ {
		resp, err := c.Query(context.Background(), "ws_CO_1")
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if resp.String("ResultCode") != "1032" {
			t.Errorf("ResultCode = %q", resp.String("ResultCode"))
		}
	}
	if f.tokenCalls != 2 {
		t.Errorf("token calls = %d, want 2", f.tokenCalls)
	}
	if f.lastQuery["CheckoutRequestID"] != "ws_CO_1" || f.lastQuery["Timestamp"] != "20240101120000" {
		t.Errorf("unexpected query body: %v", f.lastQuery)
	}
}

func TestDecodeResponseKeepsNumbers(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"PhoneNumber":254712345678,"Amount":1.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if r.String("PhoneNumber") != "254712345678" || r.String("Amount") != "1.5" {
		t.Errorf("got %v", r)
	}
	if _, err := DecodeResponse([]byte(`null`)); err == nil {
		t.Error("expected error for null body")
	}
}
