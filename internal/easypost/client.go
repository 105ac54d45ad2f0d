// internal/easypost/client.go
//
// A minimal EasyPost REST client. The API key is held by the client and
// threaded into every request explicitly; nothing reads ambient state.

package easypost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.easypost.com/v2"

const (
	defaultRequestTimeout = 60 * time.Second
	defaultLabelTimeout   = 10 * time.Second
)

// Client calls the EasyPost API. Construct one per run with NewClient.
type Client struct {
	apiKey  string
	baseURL string

	// api bounds every API call; download bounds label document fetches,
	// which hit a separate asset host and get their own tighter budget.
	api      *http.Client
	download *http.Client
}

// Options customize a Client during construction.
type Options struct {
	// BaseURL overrides the API endpoint (tests point it at a local server).
	BaseURL string

	// RequestTimeout bounds API calls; zero keeps the default.
	RequestTimeout time.Duration

	// LabelTimeout bounds label document downloads; zero keeps the default.
	LabelTimeout time.Duration
}

// NewClient builds a client authenticated with apiKey.
func NewClient(apiKey string, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = defaultRequestTimeout
	}
	labelTimeout := opts.LabelTimeout
	if labelTimeout == 0 {
		labelTimeout = defaultLabelTimeout
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  base,
		api:      &http.Client{Timeout: requestTimeout},
		download: &http.Client{Timeout: labelTimeout},
	}
}

// RetrieveAddress fetches a pre-created address by ID.
func (c *Client) RetrieveAddress(ctx context.Context, id string) (*Address, error) {
	var addr Address
	if err := c.do(ctx, http.MethodGet, "/addresses/"+url.PathEscape(id), nil, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// RetrieveParcel fetches a pre-created parcel by ID.
func (c *Client) RetrieveParcel(ctx context.Context, id string) (*Parcel, error) {
	var parcel Parcel
	if err := c.do(ctx, http.MethodGet, "/parcels/"+url.PathEscape(id), nil, &parcel); err != nil {
		return nil, err
	}
	return &parcel, nil
}

// CreateShipment requests shipment creation and rating. Nothing is purchased
// yet; the returned shipment carries the rate offers.
func (c *Client) CreateShipment(ctx context.Context, req NewShipment) (*Shipment, error) {
	payload := map[string]any{
		"shipment": map[string]any{
			"from_address": map[string]string{"id": req.FromAddressID},
			"parcel":       map[string]string{"id": req.ParcelID},
			"to_address":   req.ToAddress,
			"options":      req.Options,
		},
	}
	var shipment Shipment
	if err := c.do(ctx, http.MethodPost, "/shipments", payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// Buy commits to a rate. This is an irreversible financial action; the
// returned shipment carries the tracking code and label reference.
func (c *Client) Buy(ctx context.Context, shipmentID, rateID string) (*Shipment, error) {
	payload := map[string]any{
		"rate": map[string]string{"id": rateID},
	}
	var shipment Shipment
	path := "/shipments/" + url.PathEscape(shipmentID) + "/buy"
	if err := c.do(ctx, http.MethodPost, path, payload, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// Refund requests a refund for a purchased shipment.
func (c *Client) Refund(ctx context.Context, shipmentID string) (*Shipment, error) {
	var shipment Shipment
	path := "/shipments/" + url.PathEscape(shipmentID) + "/refund"
	if err := c.do(ctx, http.MethodPost, path, nil, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// FetchLabel downloads the label document. Label URLs point at the carrier's
// asset host, so this request carries no credentials.
func (c *Client) FetchLabel(ctx context.Context, labelURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, labelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("easypost: build label request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("easypost: fetch label: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: "label download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("easypost: read label body: %w", err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("easypost: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("easypost: build request: %w", err)
	}
	// EasyPost authenticates with HTTP basic auth, key as the username.
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("easypost: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("easypost: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("easypost: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var envelope struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr := envelope.Error
		apiErr.Status = status
		return &apiErr
	}
	return &APIError{Status: status, Message: string(data)}
}
