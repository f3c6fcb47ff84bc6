package resolver

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/webtor-io/stremio-resolver/models"
)

const (
	AddonIDFlag               = "addon-id"
	AddonNameFlag             = "addon-name"
	replacePasskeyFlag        = "replace-passkey"
	replacePasskeyPatternFlag = "replace-passkey-pattern"
	replacePasskeyInfoURLFlag = "replace-passkey-info-url"
	immutableKeysFlag         = "immutable-user-config-keys"
	defaultUserConfigFlag     = "default-user-config"
	infoConcurrencyFlag       = "info-concurrency"
)

const defaultPasskeyPattern = "[a-zA-Z0-9]+"

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   AddonIDFlag,
			Usage:  "addon id",
			Value:  "community.stremio.resolver",
			EnvVar: "ADDON_ID",
		},
		cli.StringFlag{
			Name:   AddonNameFlag,
			Usage:  "addon name",
			Value:  "Resolver",
			EnvVar: "ADDON_NAME",
		},
		cli.StringFlag{
			Name:   replacePasskeyFlag,
			Usage:  "operator passkey replaced by the user one before uncached private torrents are sent to debrid",
			EnvVar: "REPLACE_PASSKEY",
		},
		cli.StringFlag{
			Name:   replacePasskeyPatternFlag,
			Usage:  "pattern user passkeys must match",
			Value:  defaultPasskeyPattern,
			EnvVar: "REPLACE_PASSKEY_PATTERN",
		},
		cli.StringFlag{
			Name:   replacePasskeyInfoURLFlag,
			Usage:  "url where users find their passkey",
			EnvVar: "REPLACE_PASSKEY_INFO_URL",
		},
		cli.StringFlag{
			Name:   immutableKeysFlag,
			Usage:  "comma separated user config keys users can not override",
			EnvVar: "IMMUTABLE_USER_CONFIG_KEYS",
		},
		cli.StringFlag{
			Name:   defaultUserConfigFlag,
			Usage:  "json overriding the default user config",
			EnvVar: "DEFAULT_USER_CONFIG",
		},
		cli.IntFlag{
			Name:   infoConcurrencyFlag,
			Usage:  "torrent infos resolved in parallel",
			Value:  5,
			EnvVar: "INFO_CONCURRENCY",
		},
	)
}

// Config is built once at startup and shared by every resolution.
type Config struct {
	AddonID         string
	AddonName       string
	ReplacePasskey  *regexp.Regexp
	PasskeyPattern  string
	PasskeyInfoURL  string
	ImmutableKeys   []string
	Defaults        models.UserConfig
	InfoConcurrency int

	passkeyR *regexp.Regexp
}

func NewConfig(c *cli.Context) (*Config, error) {
	cfg := DefaultConfig()
	cfg.AddonID = c.String(AddonIDFlag)
	cfg.AddonName = c.String(AddonNameFlag)
	cfg.PasskeyInfoURL = c.String(replacePasskeyInfoURLFlag)
	if n := c.Int(infoConcurrencyFlag); n > 0 {
		cfg.InfoConcurrency = n
	}
	for _, k := range strings.Split(c.String(immutableKeysFlag), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.ImmutableKeys = append(cfg.ImmutableKeys, k)
		}
	}
	if raw := c.String(defaultUserConfigFlag); raw != "" {
		var in models.UserConfigInput
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return nil, errors.Wrap(err, "failed to parse default user config")
		}
		d, err := models.MergeUserConfig(cfg.Defaults, in, nil)
		if err != nil {
			return nil, err
		}
		cfg.Defaults = *d
	}
	if err := cfg.SetPasskey(c.String(replacePasskeyFlag), c.String(replacePasskeyPatternFlag)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		AddonID:         "community.stremio.resolver",
		AddonName:       "Resolver",
		PasskeyPattern:  defaultPasskeyPattern,
		Defaults:        models.DefaultUserConfig(),
		InfoConcurrency: 5,
		passkeyR:        regexp.MustCompile("^(?:" + defaultPasskeyPattern + ")$"),
	}
}

// SetPasskey enables passkey replacement when passkey is not empty.
func (s *Config) SetPasskey(passkey string, pattern string) error {
	if pattern == "" {
		pattern = defaultPasskeyPattern
	}
	pr, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return errors.Wrap(err, "invalid passkey pattern")
	}
	s.PasskeyPattern = pattern
	s.passkeyR = pr
	s.ReplacePasskey = nil
	if passkey != "" {
		r, err := regexp.Compile(passkey)
		if err != nil {
			return errors.Wrap(err, "invalid replace passkey")
		}
		s.ReplacePasskey = r
	}
	return nil
}

func (s *Config) ValidPasskey(p string) bool {
	return p != "" && s.passkeyR.MatchString(p)
}
