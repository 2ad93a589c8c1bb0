// internal/importer/client.go
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/piaxis/inventory-sync/internal/core/domain"
	"github.com/piaxis/inventory-sync/internal/handlers"
)

// Precondition failures abort the operation before any network call
var (
	ErrNoStoreSelected = errors.New("no store selected")
	ErrNoFileSelected  = errors.New("no file selected")
	ErrNoToken         = errors.New("no bearer token configured")
)

// Client submits inventory delta files to the import endpoint and
// reconciles the response into operator-facing counts.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	keys    *KeyManager
	logger  *slog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithKeyManager overrides the idempotency key source
func WithKeyManager(km *KeyManager) Option {
	return func(c *Client) { c.keys = km }
}

// NewClient creates an import client for the given server
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
		keys:    NewKeyManager(logger),
		logger:  logger.With(slog.String("component", "importer")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportRequest describes one upload attempt
type ImportRequest struct {
	StoreID        string
	IdempotencyKey string // blank means generate a fresh key
	FileName       string
	File           io.Reader
}

// ImportSummary is the reconciled outcome of one submission. Applied
// and Conflicts are never nil; a response missing either field counts
// as zero rows, not an error.
type ImportSummary struct {
	BatchID        string             `json:"batch_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Replayed       bool               `json:"replayed"`
	Applied        []domain.RowResult `json:"applied"`
	Conflicts      []domain.RowResult `json:"conflicts"`
}

// AppliedCount returns the number of applied rows
func (s *ImportSummary) AppliedCount() int { return len(s.Applied) }

// ConflictCount returns the number of conflicting rows
func (s *ImportSummary) ConflictCount() int { return len(s.Conflicts) }

// importResponse mirrors the server's import response shape. All
// fields are optional; defaulting happens in reconcile.
type importResponse struct {
	BatchID  string `json:"batch_id"`
	Replayed bool   `json:"replayed"`
	Result   *struct {
		Applied   []domain.RowResult `json:"applied"`
		Conflicts []domain.RowResult `json:"conflicts"`
	} `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Import uploads the file to the delta-application endpoint. It fails
// fast, with no network call, when the store, file, or token is
// missing. The returned summary carries the idempotency key that was
// sent; a retry of the same submission must reuse it unchanged.
func (c *Client) Import(ctx context.Context, req ImportRequest) (*ImportSummary, error) {
	if req.StoreID == "" {
		return nil, ErrNoStoreSelected
	}
	if req.File == nil {
		return nil, ErrNoFileSelected
	}
	if c.token == "" {
		return nil, ErrNoToken
	}

	key := c.keys.Resolve(req.IdempotencyKey)

	fileName := req.FileName
	if fileName == "" {
		fileName = "deltas.csv"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/stores/%s/inventory/import",
		c.baseURL, url.PathEscape(req.StoreID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set(handlers.IdempotencyKeyHeader, key)

	c.logger.InfoContext(ctx, "submitting import",
		slog.String("store_id", req.StoreID),
		slog.String("idempotency_key", key),
		slog.String("file_name", fileName))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to import: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.serverError(resp.StatusCode, raw)
	}

	var decoded importResponse
	// A malformed success body still reconciles to zero counts
	_ = json.Unmarshal(raw, &decoded)

	return reconcile(key, decoded), nil
}

// RefreshProducts fetches the current product list for the store.
// Callers invoke it after a successful import, sequentially, so the
// displayed stock reflects the applied deltas.
func (c *Client) RefreshProducts(ctx context.Context, storeID string) ([]*domain.Product, error) {
	if storeID == "" {
		return nil, ErrNoStoreSelected
	}
	if c.token == "" {
		return nil, ErrNoToken
	}

	endpoint := fmt.Sprintf("%s/api/v1/stores/%s/products",
		c.baseURL, url.PathEscape(storeID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.serverError(resp.StatusCode, raw)
	}

	var decoded struct {
		Products []*domain.Product `json:"products"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}

	return decoded.Products, nil
}

// serverError surfaces the server-provided message when one exists
func (c *Client) serverError(status int, raw []byte) error {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return fmt.Errorf("import rejected (%d): %s", status, er.Error)
	}
	return fmt.Errorf("failed to import: server returned %d", status)
}

// reconcile converts the wire response into a summary with non-nil
// slices, defaulting missing or malformed fields to empty.
func reconcile(key string, resp importResponse) *ImportSummary {
	summary := &ImportSummary{
		BatchID:        resp.BatchID,
		IdempotencyKey: key,
		Replayed:       resp.Replayed,
		Applied:        []domain.RowResult{},
		Conflicts:      []domain.RowResult{},
	}
	if resp.Result != nil {
		if resp.Result.Applied != nil {
			summary.Applied = resp.Result.Applied
		}
		if resp.Result.Conflicts != nil {
			summary.Conflicts = resp.Result.Conflicts
		}
	}
	return summary
}
