package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderSuccess(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trade", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 2.05})
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL + "/trade/", APIKey: "secret", Timeout: time.Second}, zerolog.Nop())
	res, err := c.PlaceOrder(context.Background(), OrderRequest{Contract: "ABC", Amount: decimal.NewFromInt(5), Direction: "buy"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.ExecutedPrice.Equal(decimal.RequireFromString("2.05")))
	assert.Equal(t, "ABC", received["contract"])
	assert.Equal(t, float64(5), received["amount"])
	assert.Equal(t, "buy", received["direction"])
	assert.Equal(t, "secret", received["apiKey"])
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "insufficient balance"})
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL}, zerolog.Nop())
	res, err := c.PlaceOrder(context.Background(), OrderRequest{Contract: "ABC", Amount: decimal.NewFromInt(5), Direction: "buy"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient balance", res.ErrorMessage)
}

func TestPlaceOrderMissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL}, zerolog.Nop())
	_, err := c.PlaceOrder(context.Background(), OrderRequest{Contract: "ABC", Amount: decimal.NewFromInt(1), Direction: "sell"})
	assert.Error(t, err)
}

func TestPlaceOrderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Options{Endpoint: url, Timeout: time.Second}, zerolog.Nop())
	_, err := c.PlaceOrder(context.Background(), OrderRequest{Contract: "ABC", Amount: decimal.NewFromInt(1), Direction: "buy"})
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/balance", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		_, _ = w.Write([]byte(`{"balance":"123.45"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL + "/trade", APIKey: "secret"}, zerolog.Nop())
	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123.45", bal.String())
}

func TestBalanceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL}, zerolog.Nop())
	_, err := c.Balance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
