package phonepe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("PHONEPE_API_BASE_URL", srv.URL)
	t.Setenv("PHONEPE_API_KEY", "test-key")
	t.Setenv("PHONEPE_API_KEY_HEADER", "X-API-Key")
	t.Setenv("PHONEPE_RATE_LIMIT_PER_MIN", "60000")
	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestClient_Initiate(t *testing.T) {
	var gotAuth string
	var gotBody InitiateRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/v2/pay" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(InitiateResponse{
			OrderId:     "pp-123",
			State:       StatePending,
			RedirectUrl: "https://pay.test/checkout",
		})
	}))

	resp, err := c.Initiate(context.Background(), InitiateRequest{
		MerchantOrderId: "m-1",
		AmountPaise:     100000,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if gotAuth != "test-key" {
		t.Fatalf("api key header not sent, got %q", gotAuth)
	}
	if gotBody.AmountPaise != 100000 {
		t.Fatalf("amount not forwarded, got %d", gotBody.AmountPaise)
	}
	if resp.OrderId != "pp-123" || resp.RedirectUrl != "https://pay.test/checkout" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClient_GetOrderStatus_TerminalStates(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/v2/order/pp-9/status" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(OrderStatusResponse{OrderId: "pp-9", State: StateCompleted, AmountPaise: 5000})
	}))

	status, err := c.GetOrderStatus(context.Background(), "pp-9")
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if status.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %q", status.State)
	}
}

func TestClient_NonSuccessStatus_IsError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"AUTH_FAILED"}`, http.StatusUnauthorized)
	}))

	if _, err := c.GetOrderStatus(context.Background(), "pp-9"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestNewClient_RequiresApiKey(t *testing.T) {
	t.Setenv("PHONEPE_API_BASE_URL", "")
	t.Setenv("PHONEPE_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}
