package common

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/urfave/cli"
)

var SHA1R = regexp.MustCompile("(?i)^[0-9a-f]{40}$")

var (
	DomainFlag        = "domain"
	DataFolderFlag    = "data-folder"
	SessionSecretFlag = "secret"
	UserAgentFlag     = "user-agent"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = append(f,
		cli.StringFlag{
			Name:   DomainFlag,
			Usage:  "public base url, request host is used when empty",
			EnvVar: "DOMAIN",
		},
		cli.StringFlag{
			Name:   DataFolderFlag,
			Usage:  "data folder for cache database and torrent files",
			Value:  "/tmp",
			EnvVar: "DATA_FOLDER",
		},
		cli.StringFlag{
			Name:   SessionSecretFlag,
			Usage:  "secret used to sign download references",
			Value:  "secret123",
			EnvVar: "SECRET",
		},
		cli.StringFlag{
			Name:   UserAgentFlag,
			Usage:  "user agent for outgoing api requests",
			Value:  "stremio-resolver",
			EnvVar: "USER_AGENT",
		},
	)

	return f
}

var nonWordR = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ParseWords transliterates s and splits it on every non alphanumeric run.
func ParseWords(s string) []string {
	s = nonWordR.ReplaceAllString(unidecode.Unidecode(s), " ")
	return strings.Fields(s)
}

func NumberPad(n int) string {
	return fmt.Sprintf("%02d", n)
}

var videoExtensions = map[string]struct{}{
	"3g2": {}, "3gp": {}, "avi": {}, "flv": {}, "mkv": {}, "mk3d": {}, "mov": {}, "mp2": {}, "mp4": {},
	"m4v": {}, "mpe": {}, "mpeg": {}, "mpg": {}, "mpv": {}, "webm": {}, "wmv": {}, "ogm": {}, "ts": {}, "m2ts": {},
}

func IsVideo(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	_, ok := videoExtensions[ext]
	return ok
}

var apiKeyR = regexp.MustCompile(`(?i)(apikey|api_key|token)=[^&\s]+`)

// RedactURL hides credentials passed in query strings.
func RedactURL(u string) string {
	return apiKeyR.ReplaceAllString(u, "$1=****")
}
