// Package client talks to a settlement node over HTTP.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"token_sales/internal/dispatch"
	"token_sales/internal/sales"
)

// APIError is a non-2xx response from the node.
type APIError struct {
	Status  int    `json:"-"`
	Code    uint32 `json:"code"`
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// SearchResult is the body of GET /sales.
type SearchResult struct {
	Results  []*sales.SaleAccount `json:"results"`
	Metadata sales.SalesMetadata  `json:"metadata"`
}

type Client struct {
	http *resty.Client
}

// New returns a client for the node at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, query map[string]string) error {
	var apiErr APIError
	req := c.http.R().SetContext(ctx).SetResult(result).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return &apiErr
	}
	return nil
}

// Submit posts a signed transaction.
func (c *Client) Submit(ctx context.Context, tx *dispatch.Transaction) (*dispatch.Result, error) {
	if tx == nil {
		return nil, errors.New("nil transaction")
	}
	var out dispatch.Result
	if err := c.do(ctx, http.MethodPost, "/transactions", tx.Envelope(), &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sale fetches the sale at address.
func (c *Client) Sale(ctx context.Context, address solana.PublicKey) (*sales.SaleAccount, error) {
	var out sales.SaleAccount
	if err := c.do(ctx, http.MethodGet, "/sales/"+address.String(), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events fetches the journal of the sale at address.
func (c *Client) Events(ctx context.Context, address solana.PublicKey) ([]sales.Event, error) {
	var out struct {
		Events []sales.Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/sales/"+address.String()+"/events", nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Search lists sales filtered by authority and status; both may be empty.
func (c *Client) Search(ctx context.Context, authority, status string) (*SearchResult, error) {
	query := map[string]string{}
	if authority != "" {
		query["authority"] = authority
	}
	if status != "" {
		query["status"] = status
	}
	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/sales", nil, &out, query); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns owner's ledger balance of mint.
func (c *Client) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var out struct {
		Amount uint64 `json:"amount"`
	}
	path := fmt.Sprintf("/balances/%s/%s", owner, mint)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return 0, err
	}
	return out.Amount, nil
}
