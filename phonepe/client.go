package phonepe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client talks to the PhonePe order API. The base URL and credentials come
// from the environment so the sandbox endpoint can be swapped in without a
// code change.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("PHONEPE_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.phonepe.com/apis/pg"
	}
	apiKey := strings.TrimSpace(os.Getenv("PHONEPE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("phonepe api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("PHONEPE_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "Authorization"
	}
	rateLimitPerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("PHONEPE_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.limiter != nil {
		<-c.limiter
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("phonepe api error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/v2/pay", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, merchantOrderId string) (*OrderStatusResponse, error) {
	var out OrderStatusResponse
	path := fmt.Sprintf("/checkout/v2/order/%s/status", merchantOrderId)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	var out RefundResponse
	if err := c.do(ctx, http.MethodPost, "/payments/v2/refund", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
