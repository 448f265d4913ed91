// Package api is the HTTP client of the equipment analytics API. Every call
// takes a context and an Authorizer; the client itself holds no credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/atinyakov/chemora/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiLogin     = "/login/"
	apiRegister  = "/register/"
	apiDatasets  = "/datasets/"
	apiUpload    = "/upload/"
	apiEquipment = "/equipment/%d/"
	apiSummary   = "/summary/%d/"
	apiReport    = "/report/%d/"
)

// Client talks to one API base URL.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a Client for baseURL using hc for transport.
func New(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Login asks the server to verify cred. A rejection is a KindAuth error.
func (c *Client) Login(ctx context.Context, cred models.Credential) error {
	resp, err := c.doJSON(ctx, NoAuth, http.MethodPost, apiLogin, cred)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		apiErr := responseError(resp)
		apiErr.Kind = KindAuth
		return apiErr
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var out successResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &Error{Kind: KindServer, Message: "invalid response", StatusCode: resp.StatusCode, Err: err}
	}
	if !out.Success {
		return &Error{Kind: KindAuth, Message: "Invalid credentials", StatusCode: resp.StatusCode}
	}
	return nil
}

// Register creates an account. It does not authenticate.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	resp, err := c.doJSON(ctx, NoAuth, http.MethodPost, apiRegister, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	var out successResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &Error{Kind: KindServer, Message: "invalid response", StatusCode: resp.StatusCode, Err: err}
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "Registration failed"
		}
		return &Error{Kind: KindServer, Message: msg, StatusCode: resp.StatusCode}
	}
	return nil
}

// Datasets lists the user's datasets, most recent first, in server order.
func (c *Client) Datasets(ctx context.Context, auth Authorizer) ([]models.Dataset, error) {
	var out []models.Dataset
	if err := c.getJSON(ctx, auth, apiDatasets, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Equipment lists the records of a dataset.
func (c *Client) Equipment(ctx context.Context, auth Authorizer, datasetID int64) ([]models.Equipment, error) {
	var out []models.Equipment
	if err := c.getJSON(ctx, auth, fmt.Sprintf(apiEquipment, datasetID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary fetches the aggregate statistics of a dataset. The server answers
// an empty dataset with 200 and an error field; that is reported as
// KindServer.
func (c *Client) Summary(ctx context.Context, auth Authorizer, datasetID int64) (*models.Summary, error) {
	var out struct {
		models.Summary
		Error string `json:"error"`
	}
	if err := c.getJSON(ctx, auth, fmt.Sprintf(apiSummary, datasetID), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &Error{Kind: KindServer, Message: out.Error, StatusCode: http.StatusOK}
	}
	s := out.Summary
	return &s, nil
}

// Upload sends a CSV file as multipart form field "file". contentType is
// the type the caller declares for the part.
func (c *Client) Upload(ctx context.Context, auth Authorizer, filename, contentType string, body io.Reader) (*models.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	resp, err := c.do(ctx, auth, http.MethodPost, apiUpload, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Kind: KindServer, Message: "invalid response", StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

// Report streams the binary report of a dataset into w.
func (c *Client) Report(ctx context.Context, auth Authorizer, datasetID int64, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, auth, http.MethodGet, fmt.Sprintf(apiReport, datasetID), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &Error{Kind: KindConnection, Message: "report download interrupted", Err: err}
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, auth Authorizer, path string, dst any) error {
	resp, err := c.do(ctx, auth, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &Error{Kind: KindServer, Message: "invalid response", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, auth Authorizer, method, path string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, auth, method, path, bytes.NewReader(b), "application/json")
}

func (c *Client) do(ctx context.Context, auth Authorizer, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if auth == nil {
		auth = NoAuth
	}
	auth.Authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("request_id", reqID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, &Error{Kind: KindConnection, Message: "Connection failed. Please check if the server is running.", Err: err}
	}
	c.log.Debug("request done",
		zap.String("request_id", reqID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return responseError(resp)
}

// responseError reads the body of a failed response into an *Error. The
// server reports {"error": msg}; authentication middleware reports
// {"detail": msg}.
func responseError(resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(data, &payload); err == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Detail
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	kind := KindServer
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = KindAuth
	}
	return &Error{
		Kind:       kind,
		Message:    msg,
		StatusCode: resp.StatusCode,
		Err:        errors.New(resp.Status),
	}
}
