// Package config loads the serve configuration: defaults, then an optional
// JSON file, then command-line flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hanpama/bookgraph/internal/resolver"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	GraphQL  GraphQLConfig  `json:"graphql"`
	UI       UIConfig       `json:"ui"`
	Store    StoreConfig    `json:"store"`
	Metrics  MetricsConfig  `json:"metrics"`
	Otel     OtelConfig     `json:"otel"`
	Log      LogConfig      `json:"log"`
	Resolver ResolverConfig `json:"resolver"`

	// Path is the JSON file the config was read from, if any.
	Path string `json:"-"`
	args []string
}

type ServerConfig struct {
	Addr            string   `json:"addr"`
	Timeout         Duration `json:"timeout"`
	Pretty          bool     `json:"pretty"`
	MaxBodyBytes    int64    `json:"max-body-bytes"`
	CORSOrigins     []string `json:"cors-origins"`
	MetadataHeaders []string `json:"metadata-headers"`
}

type GraphQLConfig struct {
	Path                         string `json:"path"`
	AllowGet                     bool   `json:"allow-get"`
	AllowPostWithQueryParameters bool   `json:"allow-post-with-query-parameters"`
	SchemaAvailable              bool   `json:"schema-available"`
}

type UIConfig struct {
	Enable bool   `json:"enable"`
	Path   string `json:"path"`
}

// StoreConfig selects the value store. An empty URL keeps the in-memory
// fixture store; otherwise URL is a libsql/sqlite URL (file:, libsql://, http://).
type StoreConfig struct {
	URL       string `json:"url"`
	AuthToken string `json:"auth-token"`
	// Seed loads the fixture catalogue into the SQL store at startup.
	Seed bool `json:"seed"`
}

type MetricsConfig struct {
	Enable bool   `json:"enable"`
	Path   string `json:"path"`
}

type OtelConfig struct {
	Endpoint string `json:"endpoint"`
	Service  string `json:"service"`
}

type LogConfig struct {
	Development bool `json:"development"`
}

type ResolverConfig struct {
	MaxConcurrency int `json:"max-concurrency"`
}

// Default returns the configuration used when neither file nor flags say
// otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			Timeout: Duration(10 * time.Second),
		},
		GraphQL: GraphQLConfig{
			Path:            "/graphql",
			SchemaAvailable: true,
		},
		UI:       UIConfig{Enable: true, Path: "/graphql-ui"},
		Metrics:  MetricsConfig{Path: "/metrics"},
		Otel:     OtelConfig{Service: "bookgraph"},
		Resolver: ResolverConfig{MaxConcurrency: resolver.DefaultMaxConcurrency},
	}
}

// Load builds a Config from args. A -config flag names a JSON file applied
// over the defaults; every other flag then overrides the file.
func Load(args []string) (*Config, error) {
	var path string
	probe := flag.NewFlagSet("config", flag.ContinueOnError)
	probe.SetOutput(io.Discard)
	probe.StringVar(&path, "config", "", "")
	Default().bindFlags(probe)
	if err := probe.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("config", "", "")
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	cfg.Path = path
	cfg.args = append([]string(nil), args...)
	return cfg, nil
}

// Reload re-reads the file and re-applies the flags c was loaded with.
func (c *Config) Reload() (*Config, error) {
	return Load(c.args)
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("error decoding config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "server.addr", c.Server.Addr, "HTTP listen address")
	fs.DurationVar((*time.Duration)(&c.Server.Timeout), "server.timeout", time.Duration(c.Server.Timeout), "Per-request execution budget")
	fs.BoolVar(&c.Server.Pretty, "server.pretty", c.Server.Pretty, "Pretty-print JSON responses")
	fs.Int64Var(&c.Server.MaxBodyBytes, "server.max-body-bytes", c.Server.MaxBodyBytes, "Request body limit, 0 for none")
	fs.Var((*listFlag)(&c.Server.CORSOrigins), "server.cors-origins", "Comma-separated allowed CORS origins")
	fs.Var((*listFlag)(&c.Server.MetadataHeaders), "server.metadata-headers", "Comma-separated headers forwarded to resolvers")

	fs.StringVar(&c.GraphQL.Path, "graphql.path", c.GraphQL.Path, "GraphQL endpoint path")
	fs.BoolVar(&c.GraphQL.AllowGet, "graphql.allow-get", c.GraphQL.AllowGet, "Accept queries over GET")
	fs.BoolVar(&c.GraphQL.AllowPostWithQueryParameters, "graphql.allow-post-with-query-parameters", c.GraphQL.AllowPostWithQueryParameters, "Read query-string parameters on POST")
	fs.BoolVar(&c.GraphQL.SchemaAvailable, "graphql.schema-available", c.GraphQL.SchemaAvailable, "Serve the SDL schema")

	fs.BoolVar(&c.UI.Enable, "ui.enable", c.UI.Enable, "Serve the GraphiQL page")
	fs.StringVar(&c.UI.Path, "ui.path", c.UI.Path, "GraphiQL page path")

	fs.StringVar(&c.Store.URL, "store.url", c.Store.URL, "libsql database URL, empty for the in-memory store")
	fs.StringVar(&c.Store.AuthToken, "store.auth-token", c.Store.AuthToken, "libsql auth token")
	fs.BoolVar(&c.Store.Seed, "store.seed", c.Store.Seed, "Load the fixture catalogue into the database")

	fs.BoolVar(&c.Metrics.Enable, "metrics.enable", c.Metrics.Enable, "Expose Prometheus metrics")
	fs.StringVar(&c.Metrics.Path, "metrics.path", c.Metrics.Path, "Metrics path")

	fs.StringVar(&c.Otel.Endpoint, "otel.endpoint", c.Otel.Endpoint, "OTLP collector endpoint")
	fs.StringVar(&c.Otel.Service, "otel.service", c.Otel.Service, "OpenTelemetry service name")

	fs.BoolVar(&c.Log.Development, "log.development", c.Log.Development, "Human-readable development logging")

	fs.IntVar(&c.Resolver.MaxConcurrency, "resolver.max-concurrency", c.Resolver.MaxConcurrency, "Resolver groups run in parallel")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max-body-bytes must not be negative"))
	}
	if c.Resolver.MaxConcurrency < 0 {
		errs = append(errs, errors.New("resolver.max-concurrency must not be negative"))
	}

	paths := map[string]string{}
	checkPath := func(name, p string) {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", name, p))
			return
		}
		if other, ok := paths[p]; ok {
			errs = append(errs, fmt.Errorf("%s collides with %s at %q", name, other, p))
			return
		}
		paths[p] = name
	}
	checkPath("graphql.path", c.GraphQL.Path)
	checkPath("graphql schema path", c.SchemaPath())
	if c.UI.Enable {
		checkPath("ui.path", c.UI.Path)
	}
	if c.Metrics.Enable {
		checkPath("metrics.path", c.Metrics.Path)
	}
	return errors.Join(errs...)
}

// SchemaPath is where the SDL is served, below the GraphQL endpoint.
func (c *Config) SchemaPath() string {
	return strings.TrimSuffix(c.GraphQL.Path, "/") + "/schema.graphql"
}

// Duration is a time.Duration written as a string ("10s") in config files.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// listFlag replaces its slice with a comma-separated value.
type listFlag []string

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}
