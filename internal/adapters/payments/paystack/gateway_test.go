package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/modularstore/internal/domain"
)

func newTestGateway(t *testing.T, h http.HandlerFunc, opts ...Option) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGateway("sk_test_123", append([]Option{WithBaseURL(srv.URL)}, opts...)...)
}

func TestInitializeSendsPayload(t *testing.T) {
	var got map[string]any
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/x1","access_code":"x1","reference":"ref-1"}}`))
	}, WithCurrency("ZAR"))

	total := 12450.0
	res, err := g.Initialize(context.Background(), domain.InitializeRequest{
		Email:       "a@b.co",
		Amount:      1245000,
		CallbackURL: "http://localhost:8080/paystack/return",
		Metadata:    &domain.PaymentMetadata{Total: &total},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/x1", res.AuthorizationURL)
	assert.Equal(t, "ref-1", res.Reference)

	assert.Equal(t, "a@b.co", got["email"])
	assert.Equal(t, 1245000.0, got["amount"])
	assert.Equal(t, "ZAR", got["currency"])
	assert.Equal(t, "http://localhost:8080/paystack/return", got["callback_url"])
	assert.Equal(t, 12450.0, got["metadata"].(map[string]any)["total"])
}

func TestInitializeDefaultsCurrencyAndMetadata(t *testing.T) {
	var got map[string]any
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"u"}}`))
	})
	_, err := g.Initialize(context.Background(), domain.InitializeRequest{Email: "a@b.co", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, got["currency"])
	assert.Equal(t, map[string]any{}, got["metadata"])
	assert.NotContains(t, got, "callback_url")
}

func TestProviderErrorSurfacesMessage(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})
	_, err := g.Initialize(context.Background(), domain.InitializeRequest{Email: "a@b.co", Amount: 1})
	var ge *domain.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Equal(t, "Invalid key", ge.Message)

	_, err = g.Verify(context.Background(), "r1")
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Invalid key", ge.Message)
}

func TestProviderErrorWithoutBody(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := g.Verify(context.Background(), "r1")
	var ge *domain.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Paystack verify failed", ge.Message)
}

func TestMissingSecret(t *testing.T) {
	g := NewGateway("")
	_, err := g.Initialize(context.Background(), domain.InitializeRequest{})
	assert.ErrorIs(t, err, domain.ErrGatewayNotConfigured)
	_, err = g.Verify(context.Background(), "r")
	assert.ErrorIs(t, err, domain.ErrGatewayNotConfigured)
}

func TestVerifyDecodesTransaction(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/T123", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"reference":"T123","status":"success","gateway_response":"Successful","message":null,
			"amount":1500000,"currency":"ZAR",
			"metadata":{"items":[{"id":"i1","productId":"storage-cube","qty":3,"selectedModules":["cube-white"]}],"shipping":0,"total":15000}}}`))
	})
	tx, err := g.Verify(context.Background(), "T123")
	require.NoError(t, err)
	assert.Equal(t, "T123", tx.Reference)
	assert.Equal(t, domain.TransactionSuccess, tx.Status)
	assert.Equal(t, "Successful", tx.GatewayResponse)
	assert.Empty(t, tx.Message)
	assert.Equal(t, int64(1500000), tx.Amount)
	require.NotNil(t, tx.Metadata)
	require.Len(t, tx.Metadata.Items, 1)
	assert.Equal(t, 3, tx.Metadata.Items[0].Units())
	require.NotNil(t, tx.Metadata.Shipping)
	assert.Equal(t, 0.0, *tx.Metadata.Shipping)
	assert.Nil(t, tx.Metadata.Subtotal)
	assert.Equal(t, 15000.0, *tx.Metadata.Total)
}

func TestDecodeMetadataVariants(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		isNil bool
		total float64
	}{
		{name: "empty string", raw: `""`, isNil: true},
		{name: "null", raw: `null`, isNil: true},
		{name: "absent", raw: ``, isNil: true},
		{name: "number", raw: `0`, isNil: true},
		{name: "object", raw: `{"total":10}`, total: 10},
		{name: "encoded object", raw: `"{\"total\":12}"`, total: 12},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			md, err := decodeMetadata(json.RawMessage(c.raw))
			require.NoError(t, err)
			if c.isNil {
				assert.Nil(t, md)
				return
			}
			require.NotNil(t, md)
			assert.Equal(t, c.total, *md.Total)
		})
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	g := NewGateway("sk", WithBaseURL(base))
	_, err := g.Verify(context.Background(), "r")
	require.Error(t, err)
	var ge *domain.GatewayError
	assert.False(t, errors.As(err, &ge))
}
