package config

import "time"

const DefaultPath = "chunkmap.toml"

// Output formats understood by [output].formats.
const (
	FormatJSON     = "json"
	FormatCalls    = "calls"
	FormatOpenAPI  = "openapi"
	FormatMarkdown = "markdown"
)

type Config struct {
	Input         Input         `toml:"input"`
	Parser        Parser        `toml:"parser"`
	Analysis      Analysis      `toml:"analysis"`
	Output        Output        `toml:"output"`
	AI            AI            `toml:"ai"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

type Input struct {
	Dir          string   `toml:"dir"`
	Exclude      []string `toml:"exclude"`
	Signatures   []string `toml:"signatures"`
	HeaderLines  int      `toml:"header_lines"`
	MaxFileBytes int64    `toml:"max_file_bytes"`
}

type Parser struct {
	// AllowPartial keeps trees containing syntax errors instead of
	// rejecting the file.
	AllowPartial bool `toml:"allow_partial"`
}

type Analysis struct {
	// Fetch and Axios are pointers so an explicit false survives defaults.
	Fetch           *bool    `toml:"fetch"`
	Axios           *bool    `toml:"axios"`
	HTTPVerbs       []string `toml:"http_verbs"`
	MaxResolveDepth int      `toml:"max_resolve_depth"`
}

func (a Analysis) FetchEnabled() bool { return a.Fetch == nil || *a.Fetch }
func (a Analysis) AxiosEnabled() bool { return a.Axios == nil || *a.Axios }

type Output struct {
	Path    string   `toml:"path"`
	Formats []string `toml:"formats"`
}

// Has reports whether format is among the configured output formats.
func (o Output) Has(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}

type AI struct {
	Enabled           bool          `toml:"enabled"`
	Provider          string        `toml:"provider"`
	Endpoint          string        `toml:"endpoint"`
	Model             string        `toml:"model"`
	APIKeyEnv         string        `toml:"api_key_env"`
	Concurrency       int           `toml:"concurrency"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
	SystemPrompt      string        `toml:"system_prompt"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}
