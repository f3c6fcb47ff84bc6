package models

// Candidate is one normalized indexer search result.
type Candidate struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	GUID      string   `json:"guid"`
	IndexerID string   `json:"indexerId"`
	Size      int64    `json:"size"`
	Link      string   `json:"link"`
	Seeders   int      `json:"seeders"`
	Peers     int      `json:"peers"`
	InfoHash  string   `json:"infoHash,omitempty"`
	MagnetURL string   `json:"magnetUrl,omitempty"`
	Type      string   `json:"type,omitempty"`
	Quality   int      `json:"quality"`
	Languages []string `json:"languages,omitempty"`
}

type TorrentFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// TorrentInfo is resolved once per candidate id and shared across users.
type TorrentInfo struct {
	ID              string        `json:"id"`
	Link            string        `json:"link"`
	MagnetURL       string        `json:"magnetUrl"`
	TorrentLocation string        `json:"torrentLocation"`
	InfoHash        string        `json:"infoHash"`
	Name            string        `json:"name"`
	Private         bool          `json:"private"`
	Size            int64         `json:"size"`
	Files           []TorrentFile `json:"files"`
}

// StreamEntry is the final unit handed to the HTTP layer.
type StreamEntry struct {
	Name     string
	Title    string
	URL      string
	InfoHash string
	FileIdx  int
	Disabled bool
}
