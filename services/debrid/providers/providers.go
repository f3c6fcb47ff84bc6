package providers

import (
	"net/http"

	"github.com/urfave/cli"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/debrid"
)

const (
	realDebridURLFlag = "real-debrid-url"
	allDebridURLFlag  = "all-debrid-url"
	premiumizeURLFlag = "premiumize-url"
	debridLinkURLFlag = "debrid-link-url"
	torBoxURLFlag     = "torbox-url"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   realDebridURLFlag,
			Usage:  "real-debrid api url",
			Value:  "https://api.real-debrid.com/rest/1.0",
			EnvVar: "REAL_DEBRID_URL",
		},
		cli.StringFlag{
			Name:   allDebridURLFlag,
			Usage:  "alldebrid api url",
			Value:  "https://api.alldebrid.com/v4",
			EnvVar: "ALL_DEBRID_URL",
		},
		cli.StringFlag{
			Name:   premiumizeURLFlag,
			Usage:  "premiumize api url",
			Value:  "https://www.premiumize.me/api",
			EnvVar: "PREMIUMIZE_URL",
		},
		cli.StringFlag{
			Name:   debridLinkURLFlag,
			Usage:  "debrid-link api url",
			Value:  "https://debrid-link.com/api/v2",
			EnvVar: "DEBRID_LINK_URL",
		},
		cli.StringFlag{
			Name:   torBoxURLFlag,
			Usage:  "torbox api url",
			Value:  "https://api.torbox.app",
			EnvVar: "TORBOX_URL",
		},
	)
}

type Config struct {
	RealDebridURL string
	AllDebridURL  string
	PremiumizeURL string
	DebridLinkURL string
	TorBoxURL     string
	Agent         string
}

func NewConfig(c *cli.Context) Config {
	return Config{
		RealDebridURL: c.String(realDebridURLFlag),
		AllDebridURL:  c.String(allDebridURLFlag),
		PremiumizeURL: c.String(premiumizeURLFlag),
		DebridLinkURL: c.String(debridLinkURLFlag),
		TorBoxURL:     c.String(torBoxURLFlag),
		Agent:         c.String(common.UserAgentFlag),
	}
}

// NewRegistry lists every supported provider in the order shown on the
// configure page.
func NewRegistry(cfg Config, cl *http.Client) *debrid.Registry {
	return debrid.NewRegistry(
		realDebridDescriptor(cfg, cl),
		allDebridDescriptor(cfg, cl),
		premiumizeDescriptor(cfg, cl),
		debridLinkDescriptor(cfg, cl),
		torBoxDescriptor(cfg, cl),
	)
}

func magnetFromHash(hash string) string {
	return "magnet:?xt=urn:btih:" + hash
}
