// Package exchange provides the live-exchange REST and stream clients used
// by state reconciliation. All endpoints follow the v5 result-envelope
// convention: a retCode, a retMsg and a result object.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/models"
)

const recvWindow = "5000"

// Client is the read surface reconciliation needs from an exchange
type Client interface {
	GetPositions(ctx context.Context, symbol string) ([]Position, error)
	GetActiveOrders(ctx context.Context, symbol string) ([]Order, error)
	GetOrder(ctx context.Context, symbol, orderID string) (*Order, error)
}

// RESTClient talks to the exchange REST API through the rate-limited client
type RESTClient struct {
	http      *RateLimitedHTTPClient
	baseURL   string
	apiKey    string
	apiSecret string
	logger    *logrus.Logger
}

type apiResponse struct {
	RetCode int              `json:"retCode"`
	RetMsg  string           `json:"retMsg"`
	Result  *json.RawMessage `json:"result"`
}

// NewRESTClient creates an exchange client from config
func NewRESTClient(cfg *config.ExchangeConfig, logger *logrus.Logger) *RESTClient {
	if logger == nil {
		logger = logrus.New()
	}
	httpCfg := DefaultHTTPClientConfig()
	if cfg.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.MaxRetries > 0 {
		httpCfg.MaxRetries = cfg.MaxRetries
	}
	if cfg.RateLimitPerSec > 0 {
		httpCfg.RateLimit = cfg.RateLimitPerSec
	}
	if cfg.CircuitBreakerMax > 0 {
		httpCfg.CircuitBreakerMax = cfg.CircuitBreakerMax
	}

	return &RESTClient{
		http:      NewRateLimitedHTTPClient(httpCfg, logger),
		baseURL:   cfg.APIURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		logger:    logger,
	}
}

// GetPositions fetches open positions, optionally filtered by symbol
func (c *RESTClient) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	query := url.Values{"category": {"linear"}}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	raw, err := c.get(ctx, "/v5/position/list", query)
	if err != nil {
		return nil, err
	}

	var payload positionList
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding positions: %w", err)
	}

	positions := make([]Position, 0, len(payload.List))
	for _, p := range payload.List {
		pos, err := p.toPosition()
		if err != nil {
			return nil, err
		}
		// Zero-size entries are placeholders for closed positions.
		if pos.Size == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetActiveOrders fetches non-terminal orders, optionally filtered by symbol
func (c *RESTClient) GetActiveOrders(ctx context.Context, symbol string) ([]Order, error) {
	query := url.Values{"category": {"linear"}}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	raw, err := c.get(ctx, "/v5/order/realtime", query)
	if err != nil {
		return nil, err
	}

	var payload orderList
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding orders: %w", err)
	}

	orders := make([]Order, 0, len(payload.List))
	for _, o := range payload.List {
		order, err := o.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GetOrder fetches a single order by ID. Returns nil if the exchange does
// not know the order.
func (c *RESTClient) GetOrder(ctx context.Context, symbol, orderID string) (*Order, error) {
	query := url.Values{
		"category": {"linear"},
		"orderId":  {orderID},
	}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	raw, err := c.get(ctx, "/v5/order/history", query)
	if err != nil {
		return nil, err
	}

	var payload orderList
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	if len(payload.List) == 0 {
		return nil, nil
	}
	order, err := payload.List[0].toOrder()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// get performs a signed GET and unwraps the result envelope
func (c *RESTClient) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + path
	encoded := query.Encode()
	if encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.sign(req, encoded)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("exchange error %d: %s", envelope.RetCode, envelope.RetMsg)
	}
	// A success response without a result body means the exchange sent
	// something the caller cannot act on.
	if envelope.Result == nil {
		return nil, fmt.Errorf("%s: %w", path, models.ErrMalformedResponse)
	}
	return *envelope.Result, nil
}

// sign adds the authentication headers: HMAC-SHA256 over
// timestamp+key+recvWindow+query.
func (c *RESTClient) sign(req *http.Request, query string) {
	if c.apiKey == "" {
		return
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp + c.apiKey + recvWindow + query))

	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

// Close releases the underlying HTTP resources
func (c *RESTClient) Close() error {
	return c.http.Close()
}
