package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/fetch"
	"github.com/jonathan/report-composer/internal/types"
)

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 60 * time.Second

// Response is the backend response envelope.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// File is an upload attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ServiceUpload is the multipart body of a per-service result upload.
type ServiceUpload struct {
	File   *File
	Notes  string
	Status types.Status
}

// SummaryUpload is the multipart body of a combined report upload.
type SummaryUpload struct {
	File          File
	Notes         string
	OverallStatus types.Status
}

// Client talks to the order backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	fetcher    *fetch.Client
	signer     *TokenSigner
	logger     *zap.Logger
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	Signer       *TokenSigner
	FetchOptions *fetch.Options
	Logger       *zap.Logger
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", baseURL)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	fetchOpts := opts.FetchOptions
	if fetchOpts == nil {
		fetchOpts = fetch.DefaultOptions()
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: opts.Timeout},
		fetcher:    fetch.NewClient(fetchOpts),
		signer:     opts.Signer,
		logger:     opts.Logger,
	}, nil
}

// FetchOrder loads an order with its candidates.
func (c *Client) FetchOrder(ctx context.Context, orderID types.ID) (*types.Order, error) {
	resp, err := c.do(ctx, "fetchOrder", http.MethodGet, c.endpoint("orders", orderID.String()), nil, "")
	if err != nil {
		return nil, err
	}

	var order types.Order
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		return nil, &APIError{Operation: "fetchOrder", StatusCode: http.StatusOK, Message: "invalid order payload", Cause: err}
	}
	return &order, nil
}

// FetchServiceCatalog loads the service catalog keyed by service id.
func (c *Client) FetchServiceCatalog(ctx context.Context) (types.ServiceCatalog, error) {
	resp, err := c.do(ctx, "fetchServiceCatalog", http.MethodGet, c.endpoint("services"), nil, "")
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID    types.ID `json:"_id"`
		Title string   `json:"title"`
	}
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return nil, &APIError{Operation: "fetchServiceCatalog", StatusCode: http.StatusOK, Message: "invalid catalog payload", Cause: err}
	}

	catalog := make(types.ServiceCatalog, len(entries))
	for _, e := range entries {
		catalog[e.ID] = types.ServiceInfo{Title: e.Title}
	}
	return catalog, nil
}

// UploadServiceResult uploads one service result as a single multipart request.
func (c *Client) UploadServiceResult(ctx context.Context, candidateID, serviceID types.ID, upload ServiceUpload) (*Response, error) {
	body, contentType, err := multipartBody(upload.File, map[string]string{
		"resultNotes":  upload.Notes,
		"resultStatus": string(upload.Status),
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.endpoint("candidates", candidateID.String(), "services", serviceID.String(), "result")
	return c.do(ctx, "uploadServiceResult", http.MethodPost, endpoint, body, contentType)
}

// UploadSummaryResult uploads the combined report of a candidate.
func (c *Client) UploadSummaryResult(ctx context.Context, candidateID, orderID types.ID, upload SummaryUpload) (*Response, error) {
	file := upload.File
	body, contentType, err := multipartBody(&file, map[string]string{
		"resultNotes":   upload.Notes,
		"overallStatus": string(upload.OverallStatus),
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.endpoint("candidates", candidateID.String(), "summary")
	q := url.Values{"orderId": []string{orderID.String()}}
	return c.do(ctx, "uploadSummaryResult", http.MethodPost, endpoint+"?"+q.Encode(), body, contentType)
}

// Fetch downloads a previously persisted artifact. It satisfies artifact.Fetcher.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*fetch.Result, error) {
	return c.fetcher.Fetch(ctx, rawURL)
}

// FetchBinary downloads a previously persisted artifact and returns its bytes and
// Content-Type header.
func (c *Client) FetchBinary(ctx context.Context, rawURL string) ([]byte, string, error) {
	res, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	return res.Body, res.ContentType, nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &APIError{Operation: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.signer != nil {
		token, err := c.signer.Token()
		if err != nil {
			return nil, &APIError{Operation: op, Message: "failed to sign request", Cause: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Operation: op, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	c.logger.Debug("Backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var envelope Response
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := envelope.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: "invalid response envelope", Cause: decodeErr}
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return &envelope, nil
}

func multipartBody(file *File, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if file != nil {
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	for _, key := range []string{"resultNotes", "resultStatus", "overallStatus"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
