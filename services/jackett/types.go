package jackett

import "encoding/xml"

const (
	CategoryMovie  = 2000
	CategorySeries = 5000
)

type SearchType string

const (
	SearchTypeMovie   SearchType = "movie"
	SearchTypeSeries  SearchType = "serie"
	SearchTypeSeason  SearchType = "season"
	SearchTypeEpisode SearchType = "episode"
)

type Query struct {
	Indexer string
	Name    string
	Year    int
	Season  int
	Episode int
}

// Attr is a torznab:attr element. encoding/xml matches it by local name.
type Attr struct {
	Name  string `xml:"name,attr" json:"name"`
	Value string `xml:"value,attr" json:"value"`
}

type ItemIndexer struct {
	ID   string `xml:"id,attr" json:"id"`
	Name string `xml:",chardata" json:"name"`
}

type Item struct {
	Title   string      `xml:"title" json:"title"`
	GUID    string      `xml:"guid" json:"guid"`
	Type    string      `xml:"type" json:"type"`
	Indexer ItemIndexer `xml:"jackettindexer" json:"indexer"`
	Size    string      `xml:"size" json:"size"`
	Link    string      `xml:"link" json:"link"`
	Attrs   []Attr      `xml:"attr" json:"attrs"`
}

func (i *Item) attr(name string) string {
	for _, a := range i.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []Item `xml:"item"`
	} `xml:"channel"`
}

type apiError struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

type searchCaps struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type rawIndexer struct {
	ID         string `xml:"id,attr"`
	Configured string `xml:"configured,attr"`
	Title      string `xml:"title"`
	Language   string `xml:"language"`
	Type       string `xml:"type"`
	Caps       struct {
		Searching struct {
			Movie  searchCaps `xml:"movie-search"`
			Series searchCaps `xml:"tv-search"`
		} `xml:"searching"`
		Categories struct {
			Category []struct {
				ID int `xml:"id,attr"`
			} `xml:"category"`
		} `xml:"categories"`
	} `xml:"caps"`
}

type indexersResponse struct {
	XMLName  xml.Name     `xml:"indexers"`
	Indexers []rawIndexer `xml:"indexer"`
}

type Searching struct {
	Available       bool     `json:"available"`
	SupportedParams []string `json:"supportedParams"`
}

type Indexer struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	Type       string `json:"type"`
	Categories []int  `json:"categories"`
	Movie      Searching
	Series     Searching
}

// Supports reports whether the indexer can search the given kind.
func (i *Indexer) Supports(series bool) bool {
	if series {
		return i.Series.Available
	}
	return i.Movie.Available
}
