package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"mpesa_backend/internal/config"
	"mpesa_backend/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"
)

// Response is a gateway JSON object as received. Numbers are kept as json.Number.
type Response map[string]any

func (r Response) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value under key rendered as a string, or "" when absent.
func (r Response) String(key string) string {
	return Stringify(r[key])
}

// Stringify renders a decoded JSON scalar without losing digits.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

type PushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

type pushBody struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

type queryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// Client talks to the Daraja OAuth, STK push and STK query endpoints.
// Every call fetches a fresh access token.
type Client struct {
	cfg     config.Mpesa
	baseURL string
	http    *http.Client
	loc     *time.Location
	now     func() time.Time
}

func NewClient(cfg config.Mpesa, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Client{
		cfg:     cfg,
		baseURL: cfg.Endpoint(),
		http:    hc,
		loc:     cfg.Location(),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for request timestamps.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", &domain.AuthError{Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("mpesa access token error: %v", err)
		return "", &domain.AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("mpesa access token error: read body: %v", err)
		return "", &domain.AuthError{Err: fmt.Errorf("read token response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("mpesa access token error: status=%d body=%s", resp.StatusCode, string(body))
		return "", &domain.AuthError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &domain.AuthError{Err: fmt.Errorf("parse token: %w", err)}
	}
	if tok.AccessToken == "" {
		return "", &domain.AuthError{Err: errors.New("access_token missing from response")}
	}
	return tok.AccessToken, nil
}

func (c *Client) Push(ctx context.Context, p PushRequest) (Response, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := Timestamp(c.now().In(c.loc))
	phone := NormalizePhone(p.PhoneNumber)

	body := pushBody{
		BusinessShortCode: c.cfg.BusinessShortCode,
		Password:          Password(c.cfg.BusinessShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            json.Number(p.Amount.String()),
		PartyA:            phone,
		PartyB:            c.cfg.BusinessShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  p.AccountReference,
		TransactionDesc:   p.TransactionDesc,
	}

	log.Printf("mpesa stk push: phone=%s amount=%s account_reference=%s",
		maskPhone(phone), p.Amount.String(), p.AccountReference)

	return c.post(ctx, "stk push", pushPath, token, body)
}

func (c *Client) Query(ctx context.Context, checkoutRequestID string) (Response, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := Timestamp(c.now().In(c.loc))
	body := queryBody{
		BusinessShortCode: c.cfg.BusinessShortCode,
		Password:          Password(c.cfg.BusinessShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	return c.post(ctx, "stk query", queryPath, token, body)
}

func (c *Client) post(ctx context.Context, op, path, token string, payload any) (Response, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("mpesa %s error: %v", op, err)
		return nil, &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("mpesa %s error: status=%d body=%s", op, resp.StatusCode, string(respBody))
		return nil, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(string(respBody))}
	}

	out, err := DecodeResponse(respBody)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return out, nil
}

// DecodeResponse parses a JSON object keeping numbers as json.Number.
func DecodeResponse(b []byte) (Response, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out Response
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		return nil, errors.New("decode response: not a JSON object")
	}
	return out, nil
}
