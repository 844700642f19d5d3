package qa

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/docqa-cli/internal/domain"
	"github.com/bnema/docqa-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog"
)

const (
	maxResponseBytes    = 1 << 20
	maxAskResponseBytes = 4 << 20
	sniffBytes          = 261

	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-API-KEY"
)

const (
	pathAsk            = "/ask"
	pathUpload         = "/upload"
	pathClearDocuments = "/clear-documents"
	pathStatus         = "/status"
)

// Client talks to the document-QA service over HTTP.
type Client struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

var _ ports.DocumentQA = Client{}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Response     string  `json:"response"`
	Cached       bool    `json:"cached"`
	ResponseTime float64 `json:"response_time"`
	Error        string  `json:"error"`
}

type uploadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DocumentCount int    `json:"document_count"`
	Error         string `json:"error"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type statusResponse struct {
	DocumentCount *int `json:"document_count"`
}

func (c Client) Ask(ctx context.Context, question string) (domain.AskResult, error) {
	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return domain.AskResult{}, fmt.Errorf("%w: encode ask request: %w", domain.ErrTransport, err)
	}

	var payload askResponse
	status, err := c.do(ctx, http.MethodPost, pathAsk, "application/json", bytes.NewReader(body), maxAskResponseBytes, &payload)
	if err != nil {
		return domain.AskResult{}, err
	}

	if payload.Error != "" {
		return domain.AskResult{Error: payload.Error}, nil
	}
	if !successful(status) {
		return domain.AskResult{Error: statusText(status)}, nil
	}

	return domain.AskResult{Answer: domain.Answer{
		Text:         payload.Response,
		Cached:       payload.Cached,
		ResponseTime: payload.ResponseTime,
	}}, nil
}

func (c Client) Upload(ctx context.Context, upload ports.Upload) (domain.UploadResult, error) {
	if upload.Body == nil {
		return domain.UploadResult{}, fmt.Errorf("%w: upload body is required", domain.ErrTransport)
	}

	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: encode upload: %w", domain.ErrTransport, err)
	}

	var payload uploadResponse
	status, err := c.do(ctx, http.MethodPost, pathUpload, contentType, body, maxResponseBytes, &payload)
	if err != nil {
		return domain.UploadResult{}, err
	}

	success := payload.Success && successful(status)
	result := domain.UploadResult{
		Success:       success,
		Message:       payload.Message,
		DocumentCount: payload.DocumentCount,
		Error:         payload.Error,
	}
	if !success && result.Error == "" {
		result.Error = statusText(status)
	}
	return result, nil
}

func (c Client) ClearDocuments(ctx context.Context) (domain.ClearResult, error) {
	var payload clearResponse
	status, err := c.do(ctx, http.MethodPost, pathClearDocuments, "", nil, maxResponseBytes, &payload)
	if err != nil {
		return domain.ClearResult{}, err
	}

	return domain.ClearResult{
		Success: payload.Success && successful(status),
		Message: payload.Message,
	}, nil
}

func (c Client) Status(ctx context.Context) (domain.StatusResult, error) {
	var payload statusResponse
	status, err := c.do(ctx, http.MethodGet, pathStatus, "", nil, maxResponseBytes, &payload)
	if err != nil {
		return domain.StatusResult{}, err
	}
	if !successful(status) {
		return domain.StatusResult{}, fmt.Errorf("%w: status: %s", domain.ErrTransport, statusText(status))
	}
	if payload.DocumentCount == nil {
		return domain.StatusResult{}, fmt.Errorf("%w: status response missing document_count", domain.ErrTransport)
	}

	return domain.StatusResult{DocumentCount: *payload.DocumentCount}, nil
}

// do sends one request and decodes the JSON body into out. Any response whose
// body decodes is returned with its status code; everything else is a
// transport failure.
func (c Client) do(ctx context.Context, method, path, contentType string, body io.Reader, limit int64, out any) (int, error) {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s request: %w", domain.ErrTransport, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.APIKey != "" {
		req.Header.Set(headerAPIKey, c.APIKey)
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Debug().Str("request_id", requestID).Str("path", path).Err(err).Msg("request failed")
		return 0, fmt.Errorf("%w: request %s: %w", domain.ErrTransport, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.Logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(started)).
		Msg("request completed")

	if err := json.NewDecoder(io.LimitReader(resp.Body, limit)).Decode(out); err != nil {
		if !successful(resp.StatusCode) {
			return resp.StatusCode, fmt.Errorf("%w: %s: %s", domain.ErrTransport, path, statusText(resp.StatusCode))
		}
		return resp.StatusCode, fmt.Errorf("%w: decode %s response: %w", domain.ErrTransport, path, err)
	}

	return resp.StatusCode, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func encodeUpload(upload ports.Upload) (io.Reader, string, error) {
	name := filepath.Base(upload.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, "", errors.New("upload file name is required")
	}

	reader := bufio.NewReaderSize(upload.Body, sniffBytes)
	head, err := reader.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("read upload header: %w", err)
	}

	var buf bytes.Buffer
	if upload.Size > 0 {
		buf.Grow(int(upload.Size) + 512)
	}
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": name,
	}))
	header.Set("Content-Type", detectContentType(name, head))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create upload part: %w", err)
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, "", fmt.Errorf("copy upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close upload body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// detectContentType sniffs the file header first, then falls back to the
// extension.
func detectContentType(name string, head []byte) string {
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func successful(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("status %d %s", status, text)
	}
	return fmt.Sprintf("status %d", status)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("server url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("server url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("server url host is required")
	}

	// Keep any path prefix on the base URL ("https://host/qa" + "/ask").
	parsed.Path = strings.TrimRight(parsed.Path, "/") + path
	parsed.RawPath = ""
	return parsed.String(), nil
}
