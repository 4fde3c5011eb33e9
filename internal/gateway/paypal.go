package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rentago/payments/internal/domain/errs"
)

// PayPalGateway talks to the PayPal Orders v2 API.
type PayPalGateway struct {
	baseURL   string
	clientID  string
	secret    string
	returnURL string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// PayPalConfig holds the connection settings for the PayPal API.
type PayPalConfig struct {
	BaseURL   string
	ClientID  string
	Secret    string
	ReturnURL string
	Timeout   time.Duration
}

// NewPayPalGateway creates a PayPal gateway adapter.
func NewPayPalGateway(cfg PayPalConfig) *PayPalGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PayPalGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		clientID:  cfg.ClientID,
		secret:    cfg.Secret,
		returnURL: cfg.ReturnURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

// CreateOrder registers a CAPTURE-intent order and returns the approval
// link together with the provider order id as the callback reference.
func (g *PayPalGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.PaymentID,
			"custom_id":    fmt.Sprintf("reservation-%d", req.ReservationID),
			"amount": map[string]string{
				"currency_code": req.Currency,
				"value":         centsToDecimal(req.AmountCents),
			},
		}},
		"application_context": map[string]string{
			"return_url": g.returnURL,
		},
	}

	var resp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := g.post(ctx, "/v2/checkout/orders", token, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errs.New(errs.KindGatewayAmbiguous, "paypal returned order without id")
	}

	order := &Order{Reference: resp.ID}
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			order.ApprovalURL = l.Href
		}
	}
	return order, nil
}

// Verify captures the order behind the reference. A decline from PayPal
// maps to Success=false; transport faults and 5xx responses map to an
// ambiguous error so the caller leaves the ledger untouched.
func (g *PayPalGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	path := "/v2/checkout/orders/" + url.PathEscape(reference) + "/capture"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.KindGatewayAmbiguous, "paypal capture call failed", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(errs.KindGatewayAmbiguous, "read paypal capture response", err)
	}

	switch {
	case httpResp.StatusCode >= 500:
		return nil, errs.Newf(errs.KindGatewayAmbiguous,
			"paypal capture returned status %d", httpResp.StatusCode)
	case httpResp.StatusCode == http.StatusUnprocessableEntity && hasIssue(raw, "ORDER_ALREADY_CAPTURED"):
		// A previous capture went through but its outcome never reached
		// the ledger (crash mid-confirmation). The money moved; the
		// order itself holds the truth, so never report a decline here.
		return g.lookupCapturedOrder(ctx, token, reference)
	case httpResp.StatusCode >= 400:
		// Order not approved, expired session, etc. A definitive no.
		return &VerifyResult{
			Success:      false,
			ErrorMessage: declineMessage(raw, httpResp.StatusCode),
		}, nil
	}

	var order orderResponse
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, errs.Wrap(errs.KindGatewayAmbiguous, "decode paypal capture response", err)
	}

	if order.Status != "COMPLETED" {
		return &VerifyResult{
			Success:      false,
			ErrorMessage: "paypal order status " + order.Status,
		}, nil
	}

	result := &VerifyResult{Success: true, TransactionID: order.captureID()}
	if result.TransactionID == "" {
		result.TransactionID = reference
	}
	return result, nil
}

// lookupCapturedOrder fetches an order PayPal reports as already
// captured. Anything short of a confirmed COMPLETED order stays
// ambiguous: the capture exists, so a decline would be wrong.
func (g *PayPalGateway) lookupCapturedOrder(ctx context.Context, token, reference string) (*VerifyResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/v2/checkout/orders/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, fmt.Errorf("build order lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.KindGatewayAmbiguous, "paypal order lookup failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindGatewayAmbiguous,
			"paypal order lookup returned status %d", httpResp.StatusCode)
	}

	var order orderResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&order); err != nil {
		return nil, errs.Wrap(errs.KindGatewayAmbiguous, "decode paypal order lookup response", err)
	}

	if order.Status != "COMPLETED" {
		return nil, errs.Newf(errs.KindGatewayAmbiguous,
			"paypal reported order captured but status is %s", order.Status)
	}

	result := &VerifyResult{Success: true, TransactionID: order.captureID()}
	if result.TransactionID == "" {
		result.TransactionID = reference
	}
	return result, nil
}

// orderResponse is the shared shape of capture and order lookup bodies.
type orderResponse struct {
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o *orderResponse) captureID() string {
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			if c.Status == "COMPLETED" {
				return c.ID
			}
		}
	}
	return ""
}

func hasIssue(raw []byte, issue string) bool {
	var e struct {
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// token returns a cached OAuth access token, refreshing it when expired.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindGatewayAmbiguous, "paypal token call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Newf(errs.KindGatewayAmbiguous, "paypal token returned status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", errs.Wrap(errs.KindGatewayAmbiguous, "decode paypal token response", err)
	}

	g.accessToken = tok.AccessToken
	// Refresh one minute early to avoid using a token at the edge of expiry.
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

func (g *PayPalGateway) post(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindGatewayAmbiguous, "paypal call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errs.Newf(errs.KindGatewayAmbiguous, "paypal %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func declineMessage(raw []byte, status int) string {
	var e struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Name != "" {
		if e.Message != "" {
			return e.Name + ": " + e.Message
		}
		return e.Name
	}
	return fmt.Sprintf("paypal declined with status %d", status)
}

func centsToDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
