package debridlink

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
	ErrorBadToken     = "badToken"
	ErrorMaxTorrent   = "maxTorrent"
	ErrorAccessDenied = "accessDenied"
)

type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("debrid-link api error: %s %s", e.Code, e.Description)
}

type File struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Size            int64  `json:"size"`
	DownloadURL     string `json:"downloadUrl"`
	DownloadPercent int    `json:"downloadPercent"`
}

type Torrent struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HashString      string `json:"hashString"`
	DownloadPercent int    `json:"downloadPercent"`
	DownloadSpeed   int64  `json:"downloadSpeed"`
	Files           []File `json:"files"`
}

type CachedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Cached struct {
	Name  string       `json:"name"`
	Files []CachedFile `json:"files"`
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

// Cached returns cached torrents keyed by hash
func (c *Client) Cached(ctx context.Context, hashes []string) (map[string]Cached, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", "/seedbox/cached", url.Values{"url": {strings.Join(hashes, ",")}}, nil, &raw); err != nil {
		return nil, err
	}
	res := map[string]Cached{}
	// no match is encoded as an empty array
	if len(raw) == 0 || raw[0] != '{' {
		return res, nil
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "failed to parse cached torrents")
	}
	return res, nil
}

func (c *Client) List(ctx context.Context) ([]Torrent, error) {
	var res []Torrent
	if err := c.do(ctx, "GET", "/seedbox/list", nil, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Add(ctx context.Context, u string) (*Torrent, error) {
	body, err := json.Marshal(map[string]any{
		"url":   u,
		"async": true,
		"ip":    c.ip,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}
	var t Torrent
	if err := c.do(ctx, "POST", "/seedbox/add", nil, bytes.NewReader(body), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) AddFile(ctx context.Context, content []byte) (*Torrent, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "file.torrent")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(content); err != nil {
		return nil, errors.Wrap(err, "failed to write torrent file")
	}
	if err := w.WriteField("ip", c.ip); err != nil {
		return nil, errors.Wrap(err, "failed to write ip field")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url("/seedbox/add", nil), &buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var t Torrent
	if err := c.doRequest(req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.ip != "" {
		q.Set("ip", c.ip)
	}
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method string, path string, q url.Values, jsonBody io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, q), jsonBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, v)
}

func (c *Client) doRequest(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	var r struct {
		Success bool            `json:"success"`
		Value   json.RawMessage `json:"value"`
		APIError
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return errors.Wrapf(err, "failed to parse response status=%v", resp.StatusCode)
	}
	if !r.Success {
		return &r.APIError
	}
	if len(r.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Value, v); err != nil {
		return errors.Wrap(err, "failed to parse response value")
	}
	return nil
}
