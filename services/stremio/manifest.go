package stremio

const (
	Version     = "1.0.0"
	description = "Search torrents on your Jackett indexers and stream them through your debrid service."
	icon        = "https://avatars.githubusercontent.com/u/15383019?s=48&v=4"
)

type Manifest struct {
	id        string
	name      string
	shortName string
}

// NewManifest describes the addon for one user config. shortName is the
// debrid short name and may be empty.
func NewManifest(id string, name string, shortName string) *Manifest {
	return &Manifest{
		id:        id,
		name:      name,
		shortName: shortName,
	}
}

func (s *Manifest) GetManifest() *ManifestResponse {
	name := s.name
	if s.shortName != "" {
		name += " " + s.shortName
	}
	return &ManifestResponse{
		Id:          s.id,
		Version:     Version,
		Name:        name,
		Description: description,
		Icon:        icon,
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"tt"},
		Catalogs:    []CatalogItem{},
		Resources:   []string{"stream"},
		BehaviorHints: &BehaviorHints{
			Configurable: true,
		},
	}
}
