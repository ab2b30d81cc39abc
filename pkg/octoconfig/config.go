// Package octoconfig implements the Configuration Gate: it resolves the
// run constants (batch size, result caps, pagination window, endpoint,
// user agent) from layered sources, and exposes the compiled-in
// category/attribute lookup tables the Request Codec needs to translate a
// display name into the id the upstream API expects.
package octoconfig

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

// Defaults mirror the Rust reference implementation's compiled-in
// constants (config/constants.rs).
const (
	DefaultBatchSize       = 100
	DefaultCapCount        = 1000
	DefaultPageSize        = 100
	DefaultEndpoint        = "https://octopart.com/api/v4/internal"
	DefaultUserAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
	DefaultSaveDir         = "data"
	DefaultRequestTimeoutS = 10
)

// Settings holds the resolved run constants. Load only returns Settings
// that pass Validate; the optional CacheAddr, StatusAddr and MongoURI
// fields stay empty unless a source sets them.
type Settings struct {
	// BatchSize is the task runner's batch gate width (§4.6/§5): the
	// number of in-flight requests per wave.
	BatchSize int `toml:"batch_size"`

	// CapCount is the per-combination result cap (E = min(N, CapCount)
	// in §4.5's pagination invariant).
	CapCount int `toml:"cap_count"`

	// PageSize is the pagination window size (P in §4.5).
	PageSize int `toml:"page_size"`

	// Endpoint is the single GraphQL-style HTTP POST endpoint every
	// request is sent to.
	Endpoint string `toml:"endpoint"`

	// UserAgent is the default User-Agent header value, used only when
	// the caller does not supply one.
	UserAgent string `toml:"user_agent"`

	// SaveDir is the directory persisted artifacts are written under.
	SaveDir string `toml:"save_dir"`

	// RequestTimeoutSeconds records the per-request timeout in seconds. It
	// is not read by pkg/octoclient, whose timeout is a fixed 10s.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`

	// CacheAddr, if non-empty, is a "host:port" Redis address used for the
	// optional combination-count cache. Empty means the count cache is a
	// local file cache (or disabled entirely via --no-cache).
	CacheAddr string `toml:"cache_addr"`

	// StatusAddr, if non-empty, enables the optional HTTP status server
	// (§5 expansion) bound to this "host:port".
	StatusAddr string `toml:"status_addr"`

	// MongoURI, if non-empty, enables the optional additive MongoDB sink
	// (§4.5 expansion).
	MongoURI string `toml:"mongo_uri"`
}

// Defaults returns the compiled-in baseline settings.
func Defaults() Settings {
	return Settings{
		BatchSize:             DefaultBatchSize,
		CapCount:              DefaultCapCount,
		PageSize:              DefaultPageSize,
		Endpoint:              DefaultEndpoint,
		UserAgent:             DefaultUserAgent,
		SaveDir:               DefaultSaveDir,
		RequestTimeoutSeconds: DefaultRequestTimeoutS,
	}
}

// Load resolves Settings by layering, in increasing priority: compiled-in
// defaults, a TOML file at path (if non-empty and present), and finally
// environment variables prefixed OCTOSCRAPE_. Flags are applied by the
// caller afterward by assigning to the returned Settings fields, since
// cobra owns flag parsing and this package does not depend on it.
func Load(path string) (Settings, error) {
	settings := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &settings); err != nil {
				return Settings{}, scrapeerrors.Wrap(scrapeerrors.ErrCodeConfigInvalidValue, err, "parsing config file %s", path)
			}
		} else if !os.IsNotExist(err) {
			return Settings{}, scrapeerrors.Wrap(scrapeerrors.ErrCodeConfigInvalidValue, err, "reading config file %s", path)
		}
	}

	applyEnv(&settings)

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("OCTOSCRAPE_BATCH_SIZE"); v != "" {
		if n, ok := atoiOrZero(v); ok {
			s.BatchSize = n
		}
	}
	if v := os.Getenv("OCTOSCRAPE_CAP_COUNT"); v != "" {
		if n, ok := atoiOrZero(v); ok {
			s.CapCount = n
		}
	}
	if v := os.Getenv("OCTOSCRAPE_PAGE_SIZE"); v != "" {
		if n, ok := atoiOrZero(v); ok {
			s.PageSize = n
		}
	}
	if v := os.Getenv("OCTOSCRAPE_ENDPOINT"); v != "" {
		s.Endpoint = v
	}
	if v := os.Getenv("OCTOSCRAPE_USER_AGENT"); v != "" {
		s.UserAgent = v
	}
	if v := os.Getenv("OCTOSCRAPE_SAVE_DIR"); v != "" {
		s.SaveDir = v
	}
	if v := os.Getenv("OCTOSCRAPE_CACHE_ADDR"); v != "" {
		s.CacheAddr = v
	}
	if v := os.Getenv("OCTOSCRAPE_STATUS_ADDR"); v != "" {
		s.StatusAddr = v
	}
	if v := os.Getenv("OCTOSCRAPE_MONGO_URI"); v != "" {
		s.MongoURI = v
	}
}

func atoiOrZero(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, len(s) > 0
}

// Validate reports a configuration error if any constant is out of range.
func (s Settings) Validate() error {
	if s.BatchSize <= 0 {
		return scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidValue, "batch_size must be positive, got %d", s.BatchSize)
	}
	if s.CapCount <= 0 {
		return scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidValue, "cap_count must be positive, got %d", s.CapCount)
	}
	if s.PageSize <= 0 {
		return scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidValue, "page_size must be positive, got %d", s.PageSize)
	}
	if s.Endpoint == "" {
		return scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidValue, "endpoint cannot be empty")
	}
	return nil
}
