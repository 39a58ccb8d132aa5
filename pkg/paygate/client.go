package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/adhamfarouk/pillcart-backend/pkg/config"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

var (
	errAPIKeyRequired        = errors.New("paygate api key is required")
	errWebhookSecretRequired = errors.New("paygate webhook secret is required")
	errLoggerRequired        = errors.New("paygate logger is required")
)

// Client talks to the hosted-payment provider over its REST API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	currency      string
	logger        *logger.Logger
}

// Customer is the contact block the provider requires on every invoice.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

// InvoiceItem mirrors one order line on the hosted payment page.
type InvoiceItem struct {
	Name       string `json:"name"`
	Qty        int    `json:"quantity"`
	PriceCents int    `json:"price_cents"`
}

// InvoiceRequest carries everything the provider needs to host a payment page.
type InvoiceRequest struct {
	AmountCents       int           `json:"amount_cents"`
	Currency          string        `json:"currency"`
	MerchantReference string        `json:"merchant_reference"`
	Customer          Customer      `json:"customer"`
	Items             []InvoiceItem `json:"items"`
	SuccessURL        string        `json:"success_url"`
	FailURL           string        `json:"fail_url"`
	PendingURL        string        `json:"pending_url"`
}

// Invoice is the provider's handle for a created invoice.
type Invoice struct {
	InvoiceID  string `json:"invoice_id"`
	PaymentURL string `json:"payment_url"`
}

// NewClient initializes the paygate wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaygateConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		currency:      cfg.Currency,
		logger:        logg,
	}

	logg.Info(ctx, "paygate client initialized")
	return c, nil
}

// SigningSecret returns the shared secret used to verify inbound webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// Currency returns the configured settlement currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateInvoice registers an invoice with the provider and returns its
// identifiers. Nothing is persisted here; the caller commits the reference
// only after a success response.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice amount must be positive")
	}
	if req.Currency == "" {
		req.Currency = c.currency
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode invoice request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build invoice request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "reach payment provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, fmt.Sprintf("payment provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment provider rejected invoice: %d", resp.StatusCode))
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice response")
	}
	if invoice.InvoiceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invoice response missing invoice id")
	}
	return &invoice, nil
}
