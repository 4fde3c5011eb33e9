package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rentago/payments/internal/domain/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paypalTestServer(t *testing.T, captureStatus int, captureBody any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "EC-123",
			"links": []map[string]string{
				{"rel": "approve", "href": "https://sandbox.paypal.com/approve?token=EC-123"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(captureStatus)
		json.NewEncoder(w).Encode(captureBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPayPalCreateOrder(t *testing.T) {
	srv := paypalTestServer(t, http.StatusOK, nil)
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	order, err := g.CreateOrder(context.Background(), OrderRequest{
		PaymentID: "pay-1", ReservationID: 42, AmountCents: 100_00, Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "EC-123", order.Reference)
	assert.Equal(t, "https://sandbox.paypal.com/approve?token=EC-123", order.ApprovalURL)
}

func TestPayPalVerify_Completed(t *testing.T) {
	srv := paypalTestServer(t, http.StatusCreated, map[string]any{
		"status": "COMPLETED",
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]string{{"id": "TXN-1", "status": "COMPLETED"}},
			},
		}},
	})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "TXN-1", result.TransactionID)
}

func TestPayPalVerify_DeclineIsNotAnError(t *testing.T) {
	srv := paypalTestServer(t, http.StatusUnprocessableEntity, map[string]string{
		"name": "ORDER_NOT_APPROVED", "message": "payer has not approved the order",
	})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "ORDER_NOT_APPROVED")
}

// alreadyCapturedServer answers the capture POST with PayPal's 422
// ORDER_ALREADY_CAPTURED error and serves the order lookup separately.
func alreadyCapturedServer(t *testing.T, lookupStatus int, lookupBody any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{
				"name":    "UNPROCESSABLE_ENTITY",
				"message": "The requested action could not be performed.",
				"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
			})
			return
		}
		w.WriteHeader(lookupStatus)
		json.NewEncoder(w).Encode(lookupBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPayPalVerify_AlreadyCapturedResolvesFromOrder(t *testing.T) {
	// A capture from an earlier confirmation attempt went through but
	// never reached the ledger; re-verifying must recover the success.
	srv := alreadyCapturedServer(t, http.StatusOK, map[string]any{
		"status": "COMPLETED",
		"purchase_units": []map[string]any{{
			"payments": map[string]any{
				"captures": []map[string]string{{"id": "TXN-9", "status": "COMPLETED"}},
			},
		}},
	})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "TXN-9", result.TransactionID)
}

func TestPayPalVerify_AlreadyCapturedLookupFailureIsAmbiguous(t *testing.T) {
	srv := alreadyCapturedServer(t, http.StatusInternalServerError, map[string]string{})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errs.IsKind(err, errs.KindGatewayAmbiguous))
}

func TestPayPalVerify_AlreadyCapturedUnsettledOrderIsAmbiguous(t *testing.T) {
	// The capture exists per the 422, so an order not yet COMPLETED must
	// never surface as a decline.
	srv := alreadyCapturedServer(t, http.StatusOK, map[string]any{"status": "PENDING"})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errs.IsKind(err, errs.KindGatewayAmbiguous))
}

func TestPayPalVerify_ServerErrorIsAmbiguous(t *testing.T) {
	srv := paypalTestServer(t, http.StatusBadGateway, map[string]string{})
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})

	result, err := g.Verify(context.Background(), "EC-123")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errs.IsKind(err, errs.KindGatewayAmbiguous))
}

func TestPayPalVerify_TransportFaultIsAmbiguous(t *testing.T) {
	srv := paypalTestServer(t, http.StatusOK, nil)
	g := NewPayPalGateway(PayPalConfig{BaseURL: srv.URL, ClientID: "id", Secret: "secret"})
	srv.Close()

	_, err := g.Verify(context.Background(), "EC-123")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindGatewayAmbiguous))
}
