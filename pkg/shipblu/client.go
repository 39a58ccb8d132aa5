package shipblu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adhamfarouk/pillcart-backend/pkg/config"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

// tokenExpiryMargin renews the bearer before the provider actually expires it
// so an in-flight request never races the expiry.
const tokenExpiryMargin = 60 * time.Second

var (
	errRefreshTokenRequired  = errors.New("shipblu refresh token is required")
	errWebhookSecretRequired = errors.New("shipblu webhook secret is required")
	errLoggerRequired        = errors.New("shipblu logger is required")
)

// Client talks to the logistics provider. Access tokens come from an OAuth2
// refresh-token grant and are cached until near expiry.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	refreshToken  string
	webhookSecret string
	storeName     string
	logger        *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// OrderItem is one line of the shipment payload.
type OrderItem struct {
	Name string `json:"name"`
	Qty  int    `json:"quantity"`
}

// OrderRequest is the shipment-creation payload.
type OrderRequest struct {
	MerchantReference string      `json:"merchantReference"`
	CustomerName      string      `json:"customerName"`
	CustomerPhone     string      `json:"customerPhone"`
	AddressLine       string      `json:"addressLine"`
	City              string      `json:"city"`
	Region            string      `json:"region"`
	CashOnDelivery    int         `json:"cashOnDeliveryCents"`
	Items             []OrderItem `json:"items"`
	Store             string      `json:"store"`
}

// OrderResponse carries the provider identifiers used for reconciliation.
type OrderResponse struct {
	ProviderOrderID string `json:"orderId"`
	OrderNumber     string `json:"orderNumber"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewClient initializes the shipblu wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ShipbluConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	refreshToken := strings.TrimSpace(cfg.RefreshToken)
	if refreshToken == "" {
		return nil, errRefreshTokenRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		refreshToken:  refreshToken,
		webhookSecret: webhookSecret,
		storeName:     cfg.StoreName,
		logger:        logg,
	}

	logg.Info(ctx, "shipblu client initialized")
	return c, nil
}

// SigningSecret returns the shared secret used to verify inbound webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// StoreName returns the configured store identifier sent on every shipment.
func (c *Client) StoreName() string {
	if c == nil {
		return ""
	}
	return c.storeName
}

// CreateOrder registers a shipment with the provider. idempotencyKey is
// generated fresh per attempt because the provider has no natural-key dedup.
func (c *Client) CreateOrder(ctx context.Context, idempotencyKey string, req OrderRequest) (*OrderResponse, error) {
	if idempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if req.Store == "" {
		req.Store = c.storeName
	}

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shipment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "reach fulfillment provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, fmt.Sprintf("fulfillment provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("fulfillment provider rejected order: %d", resp.StatusCode))
	}

	var created OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipment response")
	}
	if created.ProviderOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipment response missing order id")
	}
	return &created, nil
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "reach fulfillment provider auth")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeProviderUnavailable, fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode token response")
	}
	if token.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "token response missing access token")
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
