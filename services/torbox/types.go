package torbox

import "fmt"

const (
	ErrorBadToken              = "BAD_TOKEN"
	ErrorNoAuth                = "NO_AUTH"
	ErrorAuth                  = "AUTH_ERROR"
	ErrorPlanRestrictedFeature = "PLAN_RESTRICTED_FEATURE"
	ErrorActiveLimit           = "ACTIVE_LIMIT"
)

// APIError carries the error code of an unsuccessful response
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torbox api error (status %d): %s %s", e.StatusCode, e.Code, e.Detail)
}

// Torrent represents a torrent in TorBox
type Torrent struct {
	ID               int     `json:"id"`
	Hash             string  `json:"hash"`
	Name             string  `json:"name"`
	Size             int64   `json:"size"`
	Progress         float64 `json:"progress"`
	DownloadState    string  `json:"download_state"`
	DownloadSpeed    int64   `json:"download_speed"`
	Seeds            int     `json:"seeds"`
	DownloadPresent  bool    `json:"download_present"`
	DownloadFinished bool    `json:"download_finished"`
	Files            []File  `json:"files"`
}

// File represents a file within a torrent
type File struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	ShortName string `json:"short_name"`
	Mimetype  string `json:"mimetype,omitempty"`
}

// CreateTorrentData represents the data returned when creating a torrent
type CreateTorrentData struct {
	TorrentID int    `json:"torrent_id"`
	AuthID    string `json:"auth_id"`
	Hash      string `json:"hash"`
}

// CachedTorrent represents a cached torrent entry
type CachedTorrent struct {
	Hash  string `json:"hash"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Files []File `json:"files,omitempty"`
}
