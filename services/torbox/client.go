package torbox

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

// Client is a TorBox API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	ip         string
}

// NewClient creates a new TorBox API client
func NewClient(httpClient *http.Client, baseURL, apiToken, ip string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   apiToken,
		ip:         ip,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func decode[T any](body []byte, what string) (T, error) {
	var v T
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return v, errors.Wrapf(err, "failed to parse %v response", what)
	}
	if !env.Success {
		return v, &APIError{StatusCode: http.StatusOK, Code: env.Error, Detail: env.Detail}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, errors.Wrapf(err, "failed to parse %v data", what)
	}
	return v, nil
}

// CreateTorrent creates a new torrent from a magnet link
func (c *Client) CreateTorrent(ctx context.Context, magnet string) (*CreateTorrentData, error) {
	params := url.Values{}
	params.Set("magnet", magnet)

	body, err := c.post(ctx, "/v1/api/torrents/createtorrent", params)
	if err != nil {
		return nil, err
	}
	data, err := decode[CreateTorrentData](body, "create torrent")
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateTorrentFile creates a new torrent from raw torrent file content
func (c *Client) CreateTorrentFile(ctx context.Context, content []byte) (*CreateTorrentData, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "file.torrent")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create form file")
	}
	if _, err := part.Write(content); err != nil {
		return nil, errors.Wrap(err, "failed to write torrent file")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/api/torrents/createtorrent", &buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	data, err := decode[CreateTorrentData](body, "create torrent")
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// ListTorrents retrieves the list of user's torrents
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	body, err := c.get(ctx, "/v1/api/torrents/mylist", url.Values{"bypass_cache": {"true"}})
	if err != nil {
		return nil, err
	}
	return decode[[]Torrent](body, "list torrents")
}

// GetTorrent retrieves a single torrent of the user by id
func (c *Client) GetTorrent(ctx context.Context, id int) (*Torrent, error) {
	params := url.Values{}
	params.Set("id", fmt.Sprintf("%d", id))
	params.Set("bypass_cache", "true")
	body, err := c.get(ctx, "/v1/api/torrents/mylist", params)
	if err != nil {
		return nil, err
	}
	t, err := decode[Torrent](body, "get torrent")
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RequestDownloadLink requests a download link for a specific file
func (c *Client) RequestDownloadLink(ctx context.Context, torrentID, fileID int) (string, error) {
	params := url.Values{}
	params.Set("token", c.apiToken)
	params.Set("torrent_id", fmt.Sprintf("%d", torrentID))
	params.Set("file_id", fmt.Sprintf("%d", fileID))
	if c.ip != "" {
		params.Set("user_ip", c.ip)
	}

	body, err := c.get(ctx, "/v1/api/torrents/requestdl", params)
	if err != nil {
		return "", err
	}
	return decode[string](body, "request download link")
}

// CheckCached checks if torrents are cached by their hashes
func (c *Client) CheckCached(ctx context.Context, hashes []string, listFiles bool) (map[string]CachedTorrent, error) {
	if len(hashes) == 0 {
		return map[string]CachedTorrent{}, nil
	}

	params := url.Values{}
	params.Set("hash", strings.Join(hashes, ","))
	params.Set("format", "object")
	params.Set("list_files", fmt.Sprintf("%t", listFiles))

	body, err := c.get(ctx, "/v1/api/torrents/checkcached", params)
	if err != nil {
		return nil, err
	}
	res, err := decode[map[string]CachedTorrent](body, "check cached")
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = map[string]CachedTorrent{}
	}
	return res, nil
}

// get performs a GET request
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	return c.doRequest(req)
}

// post performs a POST request
func (c *Client) post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	urlStr := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, "POST", urlStr, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doRequest(req)
}

// doRequest executes an HTTP request
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil {
			apiErr.Code = env.Error
			apiErr.Detail = env.Detail
		}
		if apiErr.Detail == "" && apiErr.Code == "" {
			apiErr.Detail = resp.Status
		}
		return nil, apiErr
	}

	return body, nil
}
