package realdebrid

import "fmt"

const (
	ErrorCodeBadToken          = 8
	ErrorCodePermissionDenied  = 9
	ErrorCodeTwoFactorRequired = 10
	ErrorCodeTwoFactorPending  = 11
	ErrorCodeNotPremium        = 20
)

// APIError is returned for every non 2xx response
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	ErrorCode  int    `json:"error_code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("real-debrid api error (status %d): %s (error_code: %d)", e.StatusCode, e.Message, e.ErrorCode)
}

// Download represents an unrestricted download link
type Download struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Filesize   int64  `json:"filesize"`
	Link       string `json:"link"`
	Host       string `json:"host"`
	Chunks     int    `json:"chunks"`
	Download   string `json:"download"`
	Streamable int    `json:"streamable"`
}

// TorrentInfo represents detailed information about a torrent
type TorrentInfo struct {
	ID               string        `json:"id"`
	Filename         string        `json:"filename"`
	OriginalFilename string        `json:"original_filename"`
	Hash             string        `json:"hash"`
	Bytes            int64         `json:"bytes"`
	Host             string        `json:"host"`
	Progress         float64       `json:"progress"`
	Status           string        `json:"status"`
	Added            string        `json:"added"`
	Files            []TorrentFile `json:"files"`
	Links            []string      `json:"links"`
	Ended            string        `json:"ended"`
	Speed            int64         `json:"speed"`
	Seeders          int           `json:"seeders"`
}

const TorrentStatusDownloaded = "downloaded"

// TorrentFile represents a file within a torrent
type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentAddResponse represents the response when adding a torrent
type TorrentAddResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// InstantFile is one file of a cached variant
type InstantFile struct {
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// Variant maps torrent file ids to cached files
type Variant map[string]InstantFile
