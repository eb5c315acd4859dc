package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestStripeGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		HTTPClient:        server.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeGateway_Authorize(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/v1/payment_intents", r.URL.Path)
			assert.Equal(t, "manual", r.Form.Get("capture_method"))
			assert.Equal(t, "2500", r.Form.Get("amount"))
			assert.Equal(t, "usd", r.Form.Get("currency"))
			assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"requires_capture","amount":2500}`))
		})

		res, err := g.Authorize(context.Background(), AuthorizeRequest{
			AmountCents:    2500,
			Currency:       "USD",
			CustomerRef:    "cus_1",
			IdempotencyKey: "key-1",
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "pi_123", res.TransactionID)
	})

	t.Run("Card declined", func(t *testing.T) {
		g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
		})

		res, err := g.Authorize(context.Background(), AuthorizeRequest{AmountCents: 2500, Currency: "USD"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "card_declined")
	})

	t.Run("Processor outage", func(t *testing.T) {
		g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"internal"}}`))
		})

		res, err := g.Authorize(context.Background(), AuthorizeRequest{AmountCents: 2500, Currency: "USD"})
		assert.Error(t, err)
		assert.Nil(t, res)
	})
}

func TestStripeGateway_Refund(t *testing.T) {
	t.Run("Captured intent is refunded", func(t *testing.T) {
		g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/v1/payment_intents/pi_123":
				_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded"}`))
			case r.Method == http.MethodPost && r.URL.Path == "/v1/refunds":
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "400", r.Form.Get("amount"))
				_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","status":"succeeded","amount":400}`))
			default:
				t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		})

		res, err := g.Refund(context.Background(), "pi_123", 400, "")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "re_1", res.TransactionID)
	})

	t.Run("Uncaptured intent is cancelled", func(t *testing.T) {
		g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.Method == http.MethodGet:
				_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"requires_capture"}`))
			case r.URL.Path == "/v1/payment_intents/pi_123/cancel":
				_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"canceled"}`))
			default:
				t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		})

		res, err := g.Refund(context.Background(), "pi_123", 2500, "")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}
