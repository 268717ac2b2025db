package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/bookgraph/internal/accesslog"
	"github.com/hanpama/bookgraph/internal/bookapi"
	"github.com/hanpama/bookgraph/internal/config"
	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/executor"
	"github.com/hanpama/bookgraph/internal/language"
	"github.com/hanpama/bookgraph/internal/metrics"
	"github.com/hanpama/bookgraph/internal/otel"
	"github.com/hanpama/bookgraph/internal/resolver"
	"github.com/hanpama/bookgraph/internal/schema"
	"github.com/hanpama/bookgraph/internal/server"
	"github.com/hanpama/bookgraph/internal/store"
	"github.com/hanpama/bookgraph/internal/store/sqlstore"
)

const rootUsage = `bookgraph - GraphQL book catalogue with batched async resolvers

USAGE:
  bookgraph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  print-schema     Print the GraphQL SDL
  query            Execute one query and print the JSON result
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                              JSON config file; flags override it
  -server.addr <addr>                         HTTP listen address (default: :8080)
  -server.timeout <duration>                  Per-request execution budget (default: 10s)
  -server.pretty                              Pretty-print JSON responses
  -server.max-body-bytes <n>                  Request body limit, 0 for none
  -server.cors-origins <a,b>                  Allowed CORS origins
  -server.metadata-headers <a,b>              Headers forwarded to resolvers as metadata
  -graphql.path <path>                        GraphQL endpoint (default: /graphql)
  -graphql.allow-get                          Accept queries over GET
  -graphql.allow-post-with-query-parameters   Read query-string parameters on POST
  -graphql.schema-available <bool>            Serve <graphql.path>/schema.graphql (default: true)
  -ui.enable <bool>                           Serve GraphiQL (default: true)
  -ui.path <path>                             GraphiQL path (default: /graphql-ui)
  -store.url <url>                            libsql URL; empty uses the built-in catalogue
  -store.auth-token <token>                   libsql auth token
  -store.seed                                 Load the built-in catalogue into the database
  -metrics.enable                             Expose Prometheus metrics
  -metrics.path <path>                        Metrics path (default: /metrics)
  -otel.endpoint <addr>                       OTLP collector endpoint
  -otel.service <name>                        OpenTelemetry service name (default: bookgraph)
  -log.development                            Human-readable logs
  -resolver.max-concurrency <n>               Resolver groups run in parallel (default: 16)
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>   Write SDL to file (default: stdout)
`

const queryUsage = `query FLAGS:
  -query <document>        GraphQL document (required)
  -variables <json>        Variables object
  -operation <name>        Operation to run
  -store.url <url>         libsql URL; empty uses the built-in catalogue
  -store.auth-token <tok>  libsql auth token
  -timeout <duration>      Execution budget (default: 10s)
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return errors.New("missing command")
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "query":
		return cmdQuery(cmdArgs, stdout, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	case "query":
		fmt.Fprint(stdout, queryUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func openStore(ctx context.Context, url, authToken string, seed bool) (store.Store, func() error, error) {
	if url == "" {
		return store.NewFixtureMemory(), func() error { return nil }, nil
	}
	st, err := sqlstore.Open(ctx, url, authToken)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if seed {
		if err := st.Seed(ctx, store.FixtureBooks(), store.FixtureAuthors()); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("seed store: %w", err)
		}
	}
	return st, st.Close, nil
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProduction()
}

func handlerOptions(cfg *config.Config) []server.Option {
	opts := []server.Option{
		server.WithTimeout(time.Duration(cfg.Server.Timeout)),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithAllowGet(cfg.GraphQL.AllowGet),
		server.WithAllowPostWithQueryParameters(cfg.GraphQL.AllowPostWithQueryParameters),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		opts = append(opts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}
	return opts
}

func cmdServe(args []string, stderr io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	defer accesslog.Register(logger)()

	shutdownTracing, err := otel.Setup(ctx, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	st, closeStore, err := openStore(ctx, cfg.Store.URL, cfg.Store.AuthToken, cfg.Store.Seed)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	routes := server.Routes{
		GraphQLPath:     cfg.GraphQL.Path,
		SchemaAvailable: cfg.GraphQL.SchemaAvailable,
		UIEnable:        cfg.UI.Enable,
		UIPath:          cfg.UI.Path,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}

	var handler *server.Handler
	sch, reg, err := bookapi.Build(st, resolver.WithMaxConcurrency(cfg.Resolver.MaxConcurrency))
	if err != nil {
		logger.Error("graphql execution service not available", zap.Error(err))
	} else {
		handler = server.New(reg, sch, handlerOptions(cfg)...)
		routes.Execution = handler
		routes.Schema = sch
	}

	if cfg.Metrics.Enable {
		collector := metrics.New()
		defer collector.Register()()
		routes.Metrics = collector.Handler()
		routes.MetricsPath = cfg.Metrics.Path
	}

	h, err := routes.Handler()
	if err != nil {
		return err
	}

	if cfg.Path != "" && handler != nil {
		err := cfg.Watch(ctx, logger, func(next *config.Config) {
			handler.Configure(handlerOptions(next)...)
		})
		if err != nil {
			logger.Warn("config watch disabled", zap.Error(err))
		}
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: h}
	errc := make(chan error, 1)
	go func() {
		logger.Info("graphql server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("path", cfg.GraphQL.Path))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}

	sch, _, err := bookapi.Build(store.NewMemory(nil, nil))
	if err != nil {
		return err
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func cmdQuery(args []string, stdout, stderr io.Writer) error {
	var (
		query, variables, operation string
		storeURL, authToken         string
		timeout                     = 10 * time.Second
	)
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&query, "query", "", "GraphQL document")
	fs.StringVar(&variables, "variables", "", "Variables object")
	fs.StringVar(&operation, "operation", "", "Operation to run")
	fs.StringVar(&storeURL, "store.url", "", "libsql URL")
	fs.StringVar(&authToken, "store.auth-token", "", "libsql auth token")
	fs.DurationVar(&timeout, "timeout", timeout, "Execution budget")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, queryUsage)
		return err
	}
	if query == "" {
		fmt.Fprint(stderr, queryUsage)
		return errors.New("-query is required")
	}
	vars := map[string]any{}
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &vars); err != nil {
			return fmt.Errorf("invalid -variables: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, closeStore, err := openStore(ctx, storeURL, authToken, false)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	sch, reg, err := bookapi.Build(st)
	if err != nil {
		return err
	}
	doc, errs := language.LoadQuery(sch.Source, query)
	if len(errs) > 0 {
		return fmt.Errorf("invalid query: %w", errs)
	}
	result := executor.NewExecutor(reg, sch).ExecuteRequest(ctx, doc, operation, vars, nil)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
