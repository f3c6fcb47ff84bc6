package premiumize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	MessageNotLoggedIn = "Not logged in."
	MessageNotPremium  = "Account not premium."
)

type APIError struct {
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("premiumize api error: %s", e.Message)
}

type CacheCheck struct {
	Response []bool   `json:"response"`
	Filename []string `json:"filename"`
	Filesize []any    `json:"filesize"`
}

type Transfer struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	FolderID string  `json:"folder_id"`
	FileID   string  `json:"file_id"`
	Src      string  `json:"src"`
}

// Ready reports whether the transfer content can be listed.
func (t *Transfer) Ready() bool {
	return t.Status == "finished" || t.Status == "seeding"
}

type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Link string `json:"link"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	ip         string
}

func New(httpClient *http.Client, baseURL, apiKey, ip string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		ip:         ip,
	}
}

func (c *Client) CacheCheck(ctx context.Context, hashes []string) (*CacheCheck, error) {
	var r CacheCheck
	if err := c.do(ctx, "GET", "/cache/check", url.Values{"items[]": hashes}, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) TransferList(ctx context.Context) ([]Transfer, error) {
	var r struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := c.do(ctx, "GET", "/transfer/list", nil, nil, &r); err != nil {
		return nil, err
	}
	return r.Transfers, nil
}

type created struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *Client) TransferCreate(ctx context.Context, src string) (string, error) {
	var r created
	if err := c.do(ctx, "POST", "/transfer/create", nil, url.Values{"src": {src}}, &r); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (c *Client) TransferCreateFile(ctx context.Context, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "file.torrent")
	if err != nil {
		return "", errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(content); err != nil {
		return "", errors.Wrap(err, "failed to write torrent file")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close multipart writer")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url("/transfer/create", nil), &buf)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var r created
	if err := c.doRequest(req, &r); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (c *Client) FolderList(ctx context.Context, id string) ([]Item, error) {
	var r struct {
		Content []Item `json:"content"`
	}
	if err := c.do(ctx, "GET", "/folder/list", url.Values{"id": {id}}, nil, &r); err != nil {
		return nil, err
	}
	return r.Content, nil
}

func (c *Client) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("apikey", c.apiKey)
	if c.ip != "" {
		q.Set("download_ip", c.ip)
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method string, path string, q url.Values, form url.Values, v any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, q), body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.doRequest(req, v)
}

func (c *Client) doRequest(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the request url carries the api key
		return errors.Errorf("request failed: %v", strings.ReplaceAll(err.Error(), c.apiKey, "****"))
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	var status struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &status); err != nil {
		return errors.Wrapf(err, "failed to parse response status=%v", resp.StatusCode)
	}
	if status.Status != "success" {
		return &APIError{Message: status.Message}
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrap(err, "failed to parse response data")
	}
	return nil
}
