package stremio

type StreamBehaviorHints struct {
	BingeGroup  string `json:"bingeGroup,omitempty"`
	Filename    string `json:"filename,omitempty"`
	NotWebReady bool   `json:"notWebReady,omitempty"`
}

type StreamItem struct {
	Name          string               `json:"name,omitempty"`
	Title         string               `json:"title,omitempty"`
	InfoHash      string               `json:"infoHash,omitempty"`
	FileIdx       *int                 `json:"fileIdx,omitempty"`
	Url           string               `json:"url,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamsResponse struct {
	Streams []StreamItem `json:"streams"`
}

type CatalogItem struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

type ManifestResponse struct {
	Id            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Icon          string         `json:"icon,omitempty"`
	Types         []string       `json:"types"`
	IDPrefixes    []string       `json:"idPrefixes"`
	Catalogs      []CatalogItem  `json:"catalogs"`
	Resources     []string       `json:"resources"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

type BehaviorHints struct {
	Configurable          bool `json:"configurable,omitempty"`
	ConfigurationRequired bool `json:"configurationRequired,omitempty"`
}
