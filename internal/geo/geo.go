// Package geo resolves Brazilian postal codes (CEPs) to addresses using a
// ViaCEP-compatible service, with a TTL cache in front so the sign-up form
// does not hammer the external service.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Address is the resolved location for a CEP.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"street,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Client looks up CEPs, consulting the cache first.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      *Cache
}

// NewClient creates a lookup client backed by the given cache.
func NewClient(baseURL string, cache *Cache) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Cache:      cache,
	}
}

// viaCEPResponse is the wire format of the external service.
type viaCEPResponse struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
	Error        bool   `json:"erro"`
}

// Lookup resolves a CEP (digits only, 8 characters). Returns nil when the CEP
// is unknown to the service.
func (c *Client) Lookup(ctx context.Context, cep string) (*Address, error) {
	cep = normalizeCEP(cep)
	if len(cep) != 8 {
		return nil, fmt.Errorf("cep must have 8 digits")
	}

	if cached, ok := c.Cache.Get(cep); ok {
		return &cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ws/"+cep+"/json/", nil)
	if err != nil {
		return nil, fmt.Errorf("building cep request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up cep: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cep service returned %d: %s", resp.StatusCode, msg)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding cep response: %w", err)
	}
	if body.Error {
		return nil, nil
	}

	address := Address{
		CEP:          cep,
		Street:       body.Street,
		Neighborhood: body.Neighborhood,
		City:         body.City,
		State:        body.State,
	}
	c.Cache.Set(cep, address)
	return &address, nil
}

// normalizeCEP strips everything but digits.
func normalizeCEP(cep string) string {
	var b strings.Builder
	for _, r := range cep {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
