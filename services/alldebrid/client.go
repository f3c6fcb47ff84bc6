package alldebrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	ErrorBadAPIKey           = "AUTH_BAD_APIKEY"
	ErrorMissingAPIKey       = "AUTH_MISSING_APIKEY"
	ErrorAuthBlocked         = "AUTH_BLOCKED"
	ErrorMagnetMustBePremium = "MAGNET_MUST_BE_PREMIUM"
	ErrorFreeTrialLimit      = "FREE_TRIAL_LIMIT_REACHED"
	ErrorMustBePremium       = "MUST_BE_PREMIUM"
)

const StatusReady = "Ready"

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alldebrid api error: %s %s", e.Code, e.Message)
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *APIError `json:"error"`
}

type Link struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type Magnet struct {
	ID             int     `json:"id"`
	Hash           string  `json:"hash"`
	Filename       string  `json:"filename"`
	Size           int64   `json:"size"`
	Downloaded     int64   `json:"downloaded"`
	Status         string  `json:"status"`
	StatusCode     int     `json:"statusCode"`
	ProcessingPerc float64 `json:"processingPerc"`
	DownloadSpeed  int64   `json:"downloadSpeed"`
	Links          []Link  `json:"links"`
}

type InstantMagnet struct {
	Magnet  string `json:"magnet"`
	Hash    string `json:"hash"`
	Instant bool   `json:"instant"`
}

type UploadedMagnet struct {
	ID    int    `json:"id"`
	Hash  string `json:"hash"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	agent      string
	ip         string
}

func New(httpClient *http.Client, baseURL, apiKey, agent, ip string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		agent:      agent,
		ip:         ip,
	}
}

// Instant reports instant availability of magnets or hashes
func (c *Client) Instant(ctx context.Context, magnets []string) ([]InstantMagnet, error) {
	form := url.Values{}
	for _, m := range magnets {
		form.Add("magnets[]", m)
	}
	var data struct {
		Magnets []InstantMagnet `json:"magnets"`
	}
	if err := c.do(ctx, "POST", "/magnet/instant", nil, form, &data); err != nil {
		return nil, err
	}
	return data.Magnets, nil
}

func (c *Client) StatusAll(ctx context.Context) ([]Magnet, error) {
	var data struct {
		Magnets []Magnet `json:"magnets"`
	}
	if err := c.do(ctx, "GET", "/magnet/status", nil, nil, &data); err != nil {
		return nil, err
	}
	return data.Magnets, nil
}

func (c *Client) Status(ctx context.Context, id int) (*Magnet, error) {
	var data struct {
		Magnets Magnet `json:"magnets"`
	}
	q := url.Values{"id": {strconv.Itoa(id)}}
	if err := c.do(ctx, "GET", "/magnet/status", q, nil, &data); err != nil {
		return nil, err
	}
	return &data.Magnets, nil
}

func (c *Client) UploadMagnet(ctx context.Context, magnet string) (*UploadedMagnet, error) {
	var data struct {
		Magnets []UploadedMagnet `json:"magnets"`
	}
	if err := c.do(ctx, "POST", "/magnet/upload", nil, url.Values{"magnets[]": {magnet}}, &data); err != nil {
		return nil, err
	}
	if len(data.Magnets) == 0 {
		return nil, errors.New("no magnet uploaded")
	}
	return &data.Magnets[0], nil
}

func (c *Client) UploadFile(ctx context.Context, content []byte) (*UploadedMagnet, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files[0]", "file.torrent")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(content); err != nil {
		return nil, errors.Wrap(err, "failed to write torrent file")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url("/magnet/upload/file", nil), &buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var data struct {
		Files []UploadedMagnet `json:"files"`
	}
	if err := c.doRequest(req, &data); err != nil {
		return nil, err
	}
	if len(data.Files) == 0 {
		return nil, errors.New("no file uploaded")
	}
	return &data.Files[0], nil
}

func (c *Client) UnlockLink(ctx context.Context, link string) (string, error) {
	var data struct {
		Link string `json:"link"`
	}
	if err := c.do(ctx, "GET", "/link/unlock", url.Values{"link": {link}}, nil, &data); err != nil {
		return "", err
	}
	return data.Link, nil
}

func (c *Client) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("agent", c.agent)
	if c.ip != "" {
		q.Set("ip", c.ip)
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
	var r response[json.RawMessage]
	if err := json.Unmarshal(b, &r); err != nil {
		return errors.Wrapf(err, "failed to parse response status=%v", resp.StatusCode)
	}
	if r.Status != "success" {
		if r.Error != nil {
			return r.Error
		}
		return &APIError{Message: string(b)}
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return errors.Wrap(err, "failed to parse response data")
	}
	return nil
}
