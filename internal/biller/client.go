// Package biller talks to the off-chain billing backend that performs the
// real-world fulfillment once a payment is confirmed on-chain.
package biller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"billrails/internal/hmacauth"

	"github.com/rs/zerolog"
)

// FulfillmentRequest is the at-most-once backend call for one confirmed
// transaction. Field names follow the biller's wire format.
type FulfillmentRequest struct {
	RequestID       string `json:"requestId"`
	Service         string `json:"-"`
	ServiceID       string `json:"serviceID"`
	Amount          int64  `json:"amount"`
	CryptoUsed      string `json:"cryptoUsed"`
	CryptoSymbol    string `json:"cryptoSymbol"`
	TransactionHash string `json:"transactionHash"`
	UserAddress     string `json:"userAddress"`

	Phone           string `json:"phone,omitempty"`
	VariationCode   string `json:"variation_code,omitempty"`
	MeterNumber     string `json:"meter_number,omitempty"`
	SmartcardNumber string `json:"smartcard_number,omitempty"`
}

// Receipt is the biller's acknowledgement of a fulfillment.
type Receipt struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// OrderRecord is one entry of the biller's order history.
type OrderRecord struct {
	RequestID       string `json:"requestId"`
	Type            string `json:"type"`
	Provider        string `json:"provider"`
	Amount          int64  `json:"amount"`
	Crypto          string `json:"crypto"`
	CryptoNeeded    string `json:"cryptoNeeded"`
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
}

// HistoryPage is a paginated slice of past orders for one wallet.
type HistoryPage struct {
	Orders     []OrderRecord `json:"orders"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

// Beneficiary is the result of a meter/smartcard identity lookup.
type Beneficiary struct {
	CustomerName string `json:"Customer_Name"`
	Address      string `json:"Address"`
	CurrentPlan  string `json:"Current_Bouquet"`
}

type Config struct {
	BaseURL string
	Secret  string
	// Timeout bounds every biller call; expiry is classified as a
	// connectivity failure.
	Timeout time.Duration
}

type Client struct {
	base   string
	http   *http.Client
	signer *hmacauth.Signer
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   cfg.BaseURL,
		http:   &http.Client{Timeout: timeout},
		signer: &hmacauth.Signer{Secret: cfg.Secret},
		log:    log,
	}
}

// SubmitFulfillment posts the confirmed payment to the per-service
// endpoint. The caller is responsible for at-most-once dispatch per hash;
// this method performs no deduplication of its own.
func (c *Client) SubmitFulfillment(ctx context.Context, req FulfillmentRequest) (*Receipt, error) {
	if req.Service == "" {
		return nil, &Error{Class: ClassUnknown, RequestID: req.RequestID, Err: fmt.Errorf("missing service type")}
	}
	endpoint := fmt.Sprintf("%s/api/v1/fulfil/%s", c.base, url.PathEscape(req.Service))

	var receipt Receipt
	if err := c.post(ctx, endpoint, req.RequestID, req, &receipt); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("requestId", req.RequestID).
		Str("service", req.Service).
		Str("txHash", req.TransactionHash).
		Str("reference", receipt.Reference).
		Msg("fulfillment accepted")
	return &receipt, nil
}

// OrderSubmission is the generic order-recording endpoint payload.
type OrderSubmission struct {
	RequestID       string `json:"requestId"`
	Crypto          string `json:"crypto"`
	Provider        string `json:"provider"`
	Amount          int64  `json:"amount"`
	CryptoNeeded    string `json:"cryptoNeeded"`
	Type            string `json:"type"`
	TransactionHash string `json:"transactionHash"`
	UserAddress     string `json:"userAddress"`
	Phone           string `json:"phone,omitempty"`
	MeterNumber     string `json:"meter_number,omitempty"`
	SmartcardNumber string `json:"smartcard_number,omitempty"`
}

// SubmitOrder records an order with the biller's generic endpoint.
func (c *Client) SubmitOrder(ctx context.Context, sub OrderSubmission) error {
	endpoint := c.base + "/api/v1/orders"
	var ack struct {
		Status string `json:"status"`
	}
	return c.post(ctx, endpoint, sub.RequestID, sub, &ack)
}

// History fetches past orders for a wallet address, one page at a time.
func (c *Client) History(ctx context.Context, address string, page int) (*HistoryPage, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders?address=%s&page=%d", c.base, url.QueryEscape(address), page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.signer.Sign(req, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Class: ClassConnectivity, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Class: ClassServer, Err: fmt.Errorf("history returned %d", resp.StatusCode)}
	}

	var pageBody HistoryPage
	if err := json.NewDecoder(resp.Body).Decode(&pageBody); err != nil {
		return nil, &Error{Class: ClassDecode, Err: err}
	}
	return &pageBody, nil
}

// VerifyBeneficiary looks up the identity behind a meter or smartcard
// number. Purchases for services that require verification are gated on a
// successful lookup.
func (c *Client) VerifyBeneficiary(ctx context.Context, service, serviceID, identifier string) (*Beneficiary, error) {
	endpoint := c.base + "/api/v1/verify"
	payload := struct {
		Service    string `json:"type"`
		ServiceID  string `json:"serviceID"`
		Identifier string `json:"billersCode"`
	}{Service: service, ServiceID: serviceID, Identifier: identifier}

	var beneficiary Beneficiary
	if err := c.post(ctx, endpoint, "", payload, &beneficiary); err != nil {
		return nil, err
	}
	if beneficiary.CustomerName == "" {
		return nil, &Error{Class: ClassUnknown, Err: fmt.Errorf("no customer found for %s", identifier)}
	}
	return &beneficiary, nil
}

func (c *Client) post(ctx context.Context, endpoint, requestID string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Class: ClassUnknown, RequestID: requestID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Class: ClassUnknown, RequestID: requestID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.signer.Sign(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Class: ClassConnectivity, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Class: ClassServer, RequestID: requestID, Err: fmt.Errorf("biller returned %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Class: ClassDecode, RequestID: requestID, Err: err}
	}
	return nil
}
