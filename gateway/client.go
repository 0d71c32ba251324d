package gateway

import (
	// Go Internal Packages
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Local Packages
	models "bbps-hub/models"

	// External Packages
	"go.uber.org/zap"
)

// Endpoint templates relative to the base URL. {name} tokens are replaced
// from the path parameters of a call.
const (
	EndpointCategories         = "/billpayments/operators_category"
	EndpointLocations          = "/billpayments/operators_location"
	EndpointOperators          = "/billpayments/operators"
	EndpointOperatorParameters = "/billpayments/operators/{operatorId}"
	EndpointFetchBill          = "/billpayments/fetchbill"
	EndpointPayBill            = "/billpayments/paybill"
	EndpointTransactionStatus  = "/billpayments/transaction/{transactionId}/status"
)

const (
	EnvStaging    = "staging"
	EnvProduction = "production"

	DefaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

type Config struct {
	Env              string
	StagingURL       string
	ProductionURL    string
	DeveloperKey     string
	InitiatorID      string
	AuthenticatorKey string
	Timeout          time.Duration
}

// BaseURL picks the base URL for the configured environment. Production has
// no default and must be configured explicitly.
func (c Config) BaseURL() (string, error) {
	if strings.EqualFold(c.Env, EnvProduction) {
		if c.ProductionURL == "" {
			return "", &Error{Kind: KindConfig, Message: "production base url is not set but env is production"}
		}
		return c.ProductionURL, nil
	}
	if c.StagingURL == "" {
		return "", &Error{Kind: KindConfig, Message: "staging base url is not set"}
	}
	return c.StagingURL, nil
}

// BuildURL joins base and endpoint, substitutes {name} placeholders and
// appends the query.
func BuildURL(base, endpoint string, pathParams map[string]string, query url.Values) string {
	u := strings.TrimRight(base, "/") + endpoint
	for key, value := range pathParams {
		u = strings.ReplaceAll(u, "{"+key+"}", url.PathEscape(value))
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Client talks to the biller's BBPS API.
type Client struct {
	baseURL     string
	initiatorID string
	signer      *Signer
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient validates the configuration up front so a missing production
// URL fails at start up rather than on the first request.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	baseURL, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:     baseURL,
		initiatorID: cfg.InitiatorID,
		signer:      NewSigner(cfg.DeveloperKey, cfg.AuthenticatorKey, time.Now),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}, nil
}

// Categories returns the operator categories.
func (c *Client) Categories(ctx context.Context) ([]map[string]any, error) {
	env, err := c.do(ctx, http.MethodGet, EndpointCategories, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.List("categories"), nil
}

// Locations returns the locations operators are available in.
func (c *Client) Locations(ctx context.Context) ([]map[string]any, error) {
	env, err := c.do(ctx, http.MethodGet, EndpointLocations, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.List("locations"), nil
}

// Operators lists operators. An explicit operator category id wins over the
// category filter.
func (c *Client) Operators(ctx context.Context, filters models.OperatorFilters) ([]map[string]any, error) {
	query := url.Values{}
	switch {
	case filters.OperatorCategoryID != "":
		query.Set("operator_category_id", filters.OperatorCategoryID)
	case filters.Category != "":
		query.Set("operator_category_id", filters.Category)
	}
	if filters.Location != "" {
		query.Set("location_id", filters.Location)
	}

	env, err := c.do(ctx, http.MethodGet, EndpointOperators, nil, query, nil)
	if err != nil {
		return nil, err
	}
	return env.List("operators"), nil
}

// OperatorParameters returns the raw parameter schema of one operator.
func (c *Client) OperatorParameters(ctx context.Context, operatorID string) ([]map[string]any, error) {
	params := map[string]string{"operatorId": operatorID}
	env, err := c.do(ctx, http.MethodGet, EndpointOperatorParameters, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.List("parameters"), nil
}

// FetchBill asks the operator for the current bill. Caller parameters are
// sent as top level fields next to the initiator and operator ids, which
// they cannot override.
func (c *Client) FetchBill(ctx context.Context, operatorID string, parameters map[string]any) (map[string]any, error) {
	payload := make(map[string]any, len(parameters)+2)
	for key, value := range parameters {
		payload[key] = value
	}
	payload["initiator_id"] = c.initiatorID
	payload["operator_id"] = operatorID

	env, err := c.do(ctx, http.MethodPost, EndpointFetchBill, nil, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.Object, nil
}

// PayBill pays a previously fetched bill.
func (c *Client) PayBill(ctx context.Context, fetchReferenceID string, amount float64) (map[string]any, error) {
	payload := map[string]any{
		"initiator_id":       c.initiatorID,
		"fetch_reference_id": fetchReferenceID,
		"amount":             strconv.FormatFloat(amount, 'f', -1, 64),
	}
	env, err := c.do(ctx, http.MethodPost, EndpointPayBill, nil, nil, payload)
	if err != nil {
		return nil, err
	}
	return env.Object, nil
}

// TransactionStatus queries the status of a payment transaction.
func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (map[string]any, error) {
	params := map[string]string{"transactionId": transactionID}
	env, err := c.do(ctx, http.MethodGet, EndpointTransactionStatus, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.Object, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, pathParams map[string]string, query url.Values, body any) (*Envelope, error) {
	target := BuildURL(c.baseURL, endpoint, pathParams, query)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindRequestSetup, Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &Error{Kind: KindRequestSetup, Err: err}
	}
	// Assigned directly so the header names go out exactly as the biller
	// documents them.
	for key, value := range c.signer.Headers() {
		req.Header[key] = []string{value}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("eko api request", zap.String("method", method), zap.String("url", target))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("eko api: no response", zap.String("url", target), zap.Error(err))
		return nil, &Error{Kind: KindNoResponse, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNoResponse, Err: err}
	}

	c.logger.Debug("eko api response",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := errorFromBody(resp.StatusCode, raw)
		c.logger.Error("eko api error",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.String("code", gerr.Code),
			zap.String("message", gerr.Message),
		)
		return nil, gerr
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, HTTPStatus: resp.StatusCode, Code: "MALFORMED_RESPONSE", Message: err.Error(), Err: err}
	}
	if env.IsError() {
		gerr := classify(resp.StatusCode, env.ErrorCode, env.Message)
		c.logger.Error("eko api error envelope",
			zap.String("url", target),
			zap.String("code", gerr.Code),
			zap.String("message", gerr.Message),
		)
		return nil, gerr
	}
	return env, nil
}
