package realdebrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Client represents a Real-Debrid API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	ip         string
}

// New creates a new Real-Debrid client. ip is forwarded so that links
// are unrestricted for the end user address.
func New(httpClient *http.Client, baseURL string, token string, ip string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   token,
		ip:         ip,
	}
}

// InstantAvailability returns cached variants per hash. Every variant maps
// file ids to the cached file.
func (c *Client) InstantAvailability(ctx context.Context, hashes []string) (map[string][]Variant, error) {
	res := map[string][]Variant{}
	if len(hashes) == 0 {
		return res, nil
	}
	data, err := c.get(ctx, "/torrents/instantAvailability/"+strings.Join(hashes, "/"), nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal instant availability")
	}
	for hash, v := range raw {
		// uncached hashes come back as an empty array
		if len(v) == 0 || v[0] != '{' {
			continue
		}
		var hosts map[string][]Variant
		if err := json.Unmarshal(v, &hosts); err != nil {
			continue
		}
		res[strings.ToLower(hash)] = hosts["rd"]
	}
	return res, nil
}

// GetTorrents returns the user's torrents list
func (c *Client) GetTorrents(ctx context.Context, offset, limit int, activeFirst bool) ([]TorrentInfo, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if activeFirst {
		params.Set("filter", "active")
	}
	data, err := c.get(ctx, "/torrents", params)
	if err != nil {
		return nil, err
	}
	var torrents []TorrentInfo
	if len(data) == 0 {
		return torrents, nil
	}
	if err := json.Unmarshal(data, &torrents); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal torrents")
	}
	return torrents, nil
}

// GetTorrentInfo returns information about a specific torrent
func (c *Client) GetTorrentInfo(ctx context.Context, id string) (*TorrentInfo, error) {
	data, err := c.get(ctx, "/torrents/info/"+id, nil)
	if err != nil {
		return nil, err
	}
	var torrent TorrentInfo
	if err := json.Unmarshal(data, &torrent); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal torrent info")
	}
	return &torrent, nil
}

// AddTorrent uploads raw torrent file content
func (c *Client) AddTorrent(ctx context.Context, fileContent []byte, host string) (*TorrentAddResponse, error) {
	params := url.Values{}
	if host != "" {
		params.Set("host", host)
	}
	if c.ip != "" {
		params.Set("ip", c.ip)
	}
	data, err := c.put(ctx, "/torrents/addTorrent", params, fileContent)
	if err != nil {
		return nil, err
	}
	var resp TorrentAddResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal add torrent response")
	}
	return &resp, nil
}

// AddMagnet adds a torrent via magnet link
func (c *Client) AddMagnet(ctx context.Context, magnet string, host string) (*TorrentAddResponse, error) {
	params := url.Values{}
	params.Set("magnet", magnet)
	if host != "" {
		params.Set("host", host)
	}
	data, err := c.post(ctx, "/torrents/addMagnet", params)
	if err != nil {
		return nil, err
	}
	var resp TorrentAddResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal add magnet response")
	}
	return &resp, nil
}

// SelectTorrentFiles selects files from a torrent for download
func (c *Client) SelectTorrentFiles(ctx context.Context, id string, fileIDs []string) error {
	params := url.Values{}
	params.Set("files", strings.Join(fileIDs, ","))
	_, err := c.post(ctx, "/torrents/selectFiles/"+id, params)
	return err
}

// UnrestrictLink unrestricts a hoster link
func (c *Client) UnrestrictLink(ctx context.Context, link string, password string, remote bool) (*Download, error) {
	params := url.Values{}
	params.Set("link", link)
	if password != "" {
		params.Set("password", password)
	}
	if remote {
		params.Set("remote", "1")
	}
	data, err := c.post(ctx, "/unrestrict/link", params)
	if err != nil {
		return nil, err
	}
	var download Download
	if err := json.Unmarshal(data, &download); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal download")
	}
	return &download, nil
}

// Helper methods for HTTP requests

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

func (c *Client) post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	urlStr := c.baseURL + path

	if params == nil {
		params = url.Values{}
	}
	if c.ip != "" {
		params.Set("ip", c.ip)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", urlStr, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doRequest(req)
}

func (c *Client) put(ctx context.Context, path string, params url.Values, content []byte) ([]byte, error) {
	urlStr := c.baseURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", urlStr, bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-bittorrent")

	return c.doRequest(req)
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
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
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorCode: -2}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("empty response %v", resp.StatusCode)
		}
		return nil, apiErr
	}

	return body, nil
}
