package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"casanova-portal/internal/domains/payment/gateway"
	"casanova-portal/internal/domains/payment/model"
)

// metadata keys are restricted by the Stripe API
var metadataKeyPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Client talks to the Stripe REST API directly over HTTP. Only the
// customer-balance bank transfer flow is needed, so the official SDK surface
// would be mostly dead weight.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(config Config, logger zerolog.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.GetTimeout(),
		},
		logger: logger.With().Str("gateway", "stripe").Logger(),
	}
}

var _ gateway.StripeGateway = (*Client)(nil)

// IsConfigured reports whether a secret key is present.
func (c *Client) IsConfigured() bool {
	return c.config.IsConfigured()
}

// =====================================================
// PAYMENT INTENT CREATION
// =====================================================

// CreateBankTransferIntent creates a PaymentIntent funded by a SEPA bank
// transfer into the customer's Stripe balance. The response carries the
// virtual IBAN and reference the payer must use.
func (c *Client) CreateBankTransferIntent(ctx context.Context, req gateway.BankTransferIntentRequest) (*gateway.BankTransferIntentResponse, error) {
	if !c.config.IsConfigured() {
		return nil, model.NewStripeMissingError()
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method_types[]", "customer_balance")
	form.Set("payment_method_data[type]", "customer_balance")
	form.Set("payment_method_options[customer_balance][funding_type]", "bank_transfer")
	form.Set("payment_method_options[customer_balance][bank_transfer][type]", "eu_bank_transfer")
	form.Set("payment_method_options[customer_balance][bank_transfer][eu_bank_transfer][country]", c.config.GetCountry())
	form.Set("confirm", "true")
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", sanitizeMetadataKey(k)), v)
	}

	body, err := c.post(ctx, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, model.NewStripeError(fmt.Errorf("decode payment intent response: %w", err))
	}

	id, _ := raw["id"].(string)
	status, _ := raw["status"].(string)
	if id == "" {
		return nil, model.NewStripeError(fmt.Errorf("payment intent response missing id"))
	}

	resp := &gateway.BankTransferIntentResponse{
		ID:           id,
		Status:       status,
		Instructions: extractBankTransferInstructions(raw),
		Raw:          raw,
	}

	c.logger.Info().
		Str("payment_intent_id", id).
		Str("status", status).
		Int64("amount_cents", req.AmountCents).
		Msg("Stripe payment intent created")

	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GetBaseURL()+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, model.NewStripeError(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.NewStripeError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, model.NewStripeError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.Error().
			Int("status_code", httpResp.StatusCode).
			Str("path", path).
			Str("body", truncate(string(body), 512)).
			Msg("Stripe API error")
		return nil, model.NewStripeError(fmt.Errorf("stripe api status %d: %s", httpResp.StatusCode, stripeErrorMessage(body)))
	}

	return body, nil
}

// extractBankTransferInstructions pulls the IBAN, BIC and transfer reference
// out of next_action.display_bank_transfer_instructions. Fields that Stripe
// omits stay empty.
func extractBankTransferInstructions(raw map[string]interface{}) model.BankTransferInstructions {
	var inst model.BankTransferInstructions

	nextAction, _ := raw["next_action"].(map[string]interface{})
	display, _ := nextAction["display_bank_transfer_instructions"].(map[string]interface{})
	if display == nil {
		return inst
	}

	inst.Reference, _ = display["reference"].(string)
	inst.ReferenceType, _ = display["type"].(string)

	addresses, _ := display["financial_addresses"].([]interface{})
	for _, a := range addresses {
		addr, _ := a.(map[string]interface{})
		iban, _ := addr["iban"].(map[string]interface{})
		if iban == nil {
			continue
		}
		inst.IBAN, _ = iban["iban"].(string)
		inst.BIC, _ = iban["bic"].(string)
		inst.Beneficiary, _ = iban["account_holder_name"].(string)
		inst.BankName, _ = iban["bank_name"].(string)
		break
	}

	return inst
}

func stripeErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return "request failed"
}

func sanitizeMetadataKey(key string) string {
	return metadataKeyPattern.ReplaceAllString(key, "_")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
