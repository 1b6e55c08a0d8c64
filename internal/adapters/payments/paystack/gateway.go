// Package paystack talks to the Paystack transaction API.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/phenrril/modularstore/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.paystack.co"
	DefaultCurrency = "NGN"
)

type Gateway struct {
	secret     string
	baseURL    string
	currency   string
	httpClient *http.Client
}

type Option func(*Gateway)

func WithBaseURL(u string) Option {
	return func(g *Gateway) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithCurrency(c string) Option {
	return func(g *Gateway) {
		if c != "" {
			g.currency = c
		}
	}
}

// WithHTTPClient sets the transport the bearer client wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

func NewGateway(secret string, opts ...Option) *Gateway {
	g := &Gateway{
		secret:     secret,
		baseURL:    DefaultBaseURL,
		currency:   DefaultCurrency,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Currency() string { return g.currency }

// client attaches the secret as a bearer token.
func (g *Gateway) client(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.secret, TokenType: "Bearer"}))
	c.Timeout = g.httpClient.Timeout
	return c
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initPayload struct {
	Email       string                  `json:"email"`
	Amount      int64                   `json:"amount"`
	Currency    string                  `json:"currency"`
	CallbackURL string                  `json:"callback_url,omitempty"`
	Reference   string                  `json:"reference,omitempty"`
	Metadata    *domain.PaymentMetadata `json:"metadata"`
}

type txData struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	GatewayResponse string          `json:"gateway_response"`
	Message         *string         `json:"message"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Metadata        json.RawMessage `json:"metadata"`
}

func (g *Gateway) Initialize(ctx context.Context, req domain.InitializeRequest) (domain.InitializeResult, error) {
	if g.secret == "" {
		return domain.InitializeResult{}, domain.ErrGatewayNotConfigured
	}
	p := initPayload{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Reference:   req.Reference,
		Metadata:    req.Metadata,
	}
	if p.Currency == "" {
		p.Currency = g.currency
	}
	if p.Metadata == nil {
		p.Metadata = &domain.PaymentMetadata{}
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return domain.InitializeResult{}, fmt.Errorf("encode initialize payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", bytes.NewReader(buf))
	if err != nil {
		return domain.InitializeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var res domain.InitializeResult
	if err := g.do(ctx, httpReq, "initialize", &res); err != nil {
		return domain.InitializeResult{}, err
	}
	return res, nil
}

func (g *Gateway) Verify(ctx context.Context, reference string) (domain.Transaction, error) {
	if g.secret == "" {
		return domain.Transaction{}, domain.ErrGatewayNotConfigured
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.Transaction{}, domain.ErrMissingReference
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	var d txData
	if err := g.do(ctx, httpReq, "verify", &d); err != nil {
		return domain.Transaction{}, err
	}
	tx := domain.Transaction{
		Reference:       d.Reference,
		Status:          d.Status,
		GatewayResponse: d.GatewayResponse,
		Amount:          d.Amount,
		Currency:        d.Currency,
	}
	if d.Message != nil {
		tx.Message = *d.Message
	}
	md, err := decodeMetadata(d.Metadata)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode metadata: %w", err)
	}
	tx.Metadata = md
	return tx, nil
}

func (g *Gateway) do(ctx context.Context, req *http.Request, op string, out any) error {
	res, err := g.client(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s: %w", op, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("paystack %s: read body: %w", op, err)
	}
	var env envelope
	jsonErr := json.Unmarshal(body, &env)
	if res.StatusCode >= 300 {
		msg := env.Message
		if jsonErr != nil || msg == "" {
			msg = "Paystack " + op + " failed"
		}
		return &domain.GatewayError{StatusCode: res.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return fmt.Errorf("paystack %s: decode response: %w", op, jsonErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("paystack %s: response without data", op)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("paystack %s: decode data: %w", op, err)
	}
	return nil
}

// decodeMetadata accepts an object, a JSON-encoded string holding an object,
// or the empty string the API returns when no metadata was sent.
func decodeMetadata(raw json.RawMessage) (*domain.PaymentMetadata, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	if raw[0] != '{' {
		return nil, nil
	}
	var md domain.PaymentMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
