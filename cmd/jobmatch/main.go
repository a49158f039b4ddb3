// Package main is the jobmatch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jobmatch/internal/cli"
	"github.com/hyperjump/jobmatch/internal/config"
	"github.com/hyperjump/jobmatch/internal/docid"
	"github.com/hyperjump/jobmatch/internal/indexer"
	"github.com/hyperjump/jobmatch/internal/models"
	"github.com/hyperjump/jobmatch/internal/server"
	"github.com/hyperjump/jobmatch/internal/storage"
	"github.com/hyperjump/jobmatch/internal/watcher"
	"github.com/hyperjump/jobmatch/pkg/utils"
)

var version = "dev"

const defaultServerURL = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "index":
		runIndex(args)
	case "import-csv":
		runImportCSV(args)
	case "search":
		runSearch(args)
	case "match":
		runMatch(args)
	case "delete":
		runDelete(args)
	case "status":
		runStatus(args)
	case "watch":
		runWatch(args)
	case "version", "--version", "-v":
		fmt.Printf("jobmatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads the config, builds the logger and initializes components.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noWatch := fs.Bool("no-watch", false, "do not watch the configured directories")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	opts := []server.ServerOption{server.WithLedger(components.Ledger)}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if !*noWatch {
		sink := &watcher.IndexerSink{Indexer: components.Indexer, Collection: cfg.Watch.Collection, Logger: logger}
		watchOpts := []watcher.WatcherOption{
			watcher.WithExtensions(cfg.Watch.Extensions),
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond),
		}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(sink, cfg.Watch.Directories, cfg.Watch.RecursiveOrDefault(), watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles()
		opts = append(opts, server.WithWatcher(watchSvc, resolvedConfigPath))
	}

	srv := server.NewServer(components.Engine, components.Indexer, cfg, logger, opts...)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "target collection (default from config)")
	id := fs.String("id", "", "document id (default derived from the file path)")
	owner := fs.String("owner", "", "owner user_id stored with every chunk")
	text := fs.String("text", "", "index this text instead of a file")
	replace := fs.Bool("replace", false, "delete existing points of the document first (text mode)")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in tokens (default from config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "chunk overlap in tokens (negative = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	if *text == "" && fs.NArg() < 1 {
		fmt.Println("Usage: jobmatch index [flags] <file-or-directory>")
		fmt.Println("       jobmatch index [flags] -id <id> -text <text>")
		os.Exit(1)
	}

	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	tmpl := &models.IndexRequest{
		DocumentID:   *id,
		Collection:   *collection,
		OwnerID:      *owner,
		ChunkSize:    *chunkSize,
		ChunkOverlap: optionalInt(*chunkOverlap),
	}

	if *text != "" {
		tmpl.Text = *text
		index := components.Indexer.IndexDocument
		if *replace {
			index = components.Indexer.Reindex
		}
		res, err := index(ctx, tmpl)
		if err != nil {
			fatalf("Indexing failed: %v", err)
		}
		_ = cli.WriteIndexResult(os.Stdout, res, format)
		return
	}

	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		if *id != "" {
			fatalf("-id cannot be used with a directory")
		}
		sum, err := components.Indexer.IndexDirectory(ctx, path, *recursive, cfg.Watch.Extensions, tmpl)
		if err != nil {
			fatalf("Indexing directory failed: %v", err)
		}
		_ = cli.WriteDirectorySummary(os.Stdout, sum, format)
		return
	}
	res, err := components.Indexer.IndexFile(ctx, path, tmpl)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	_ = cli.WriteIndexResult(os.Stdout, res, format)
}

func runImportCSV(args []string) {
	fs := flag.NewFlagSet("import-csv", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	profile := fs.String("profile", "cv", "csv profile from config (cv, job)")
	collection := fs.String("collection", "", "override the profile's collection")
	textColumns := fs.String("text-columns", "", "comma-separated text columns (override the profile)")
	metadataColumns := fs.String("metadata-columns", "", "comma-separated metadata columns (override the profile)")
	owner := fs.String("owner", "", "owner user_id for every row")
	limit := fs.Int("limit", 0, "import at most this many rows (0 = all)")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in tokens (default from config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "chunk overlap in tokens (negative = config default)")
	batchSize := fs.Int("batch-size", 0, "embedding batch size (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	if fs.NArg() < 1 {
		fmt.Println("Usage: jobmatch import-csv [flags] <file.csv>")
		os.Exit(1)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	sum, err := components.Indexer.IndexCSV(context.Background(), fs.Arg(0), indexer.CSVOptions{
		Profile:         *profile,
		Collection:      *collection,
		TextColumns:     splitList(*textColumns),
		MetadataColumns: splitList(*metadataColumns),
		OwnerID:         *owner,
		Limit:           *limit,
		ChunkSize:       *chunkSize,
		ChunkOverlap:    optionalInt(*chunkOverlap),
		BatchSize:       *batchSize,
	})
	if sum != nil {
		_ = cli.WriteCSVSummary(os.Stdout, sum, format)
	}
	if err != nil {
		fatalf("Import failed: %v", err)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: jobmatch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  jobmatch search python machine learning
  jobmatch search -collection job_embeddings "data engineer"
  jobmatch search -filter user_id=u1 -filter Category=HR recruiter
  jobmatch search -threshold 0.6 -top-k 20 -output json golang
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags that appear after the positional arguments to
// the front so that flag.Parse sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// filterFlag collects repeated -filter key=value flags.
type filterFlag map[string]interface{}

func (f filterFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (f filterFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("filter must be key=value, got %q", s)
	}
	f[strings.TrimSpace(k)] = parseScalar(strings.TrimSpace(v))
	return nil
}

// parseScalar turns a flag value into an int, float, bool or string payload value.
func parseScalar(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// optionalInt maps a negative flag value to "unset" so 0 stays a real value.
func optionalInt(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

func thresholdPtr(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the index directly)")
	collection := fs.String("collection", "", "collection to search (default from config)")
	topK := fs.Int("top-k", 0, "number of results (default from config)")
	threshold := fs.Float64("threshold", -1, "minimum cosine score (negative = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	filter := filterFlag{}
	fs.Var(filter, "filter", "payload filter key=value (repeatable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(args))
	format := parseFormat(*outputFormat)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	query := &models.SearchQuery{
		Query:          queryStr,
		Collection:     *collection,
		TopK:           *topK,
		ScoreThreshold: thresholdPtr(*threshold),
	}
	if len(filter) > 0 {
		query.Filter = filter
	}

	var response *models.SearchResponse
	var err error
	if *serverURL != "" {
		response = &models.SearchResponse{}
		err = postJSON(*serverURL+"/api/v1/search", query, http.StatusOK, response)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Engine.FindSimilar(context.Background(), query)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runMatch(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the index directly)")
	source := fs.String("source", "cv_embeddings", "collection holding the document")
	target := fs.String("target", "job_embeddings", "collection to match against")
	topK := fs.Int("top-k", 0, "number of documents (default from config)")
	threshold := fs.Float64("threshold", -1, "minimum cosine score (negative = config default of 0.5)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	filter := filterFlag{}
	fs.Var(filter, "filter", "payload filter on the target key=value (repeatable)")
	_ = fs.Parse(argsReorder(args))
	format := parseFormat(*outputFormat)

	if fs.NArg() < 1 {
		fmt.Println("Usage: jobmatch match [flags] <document-id>")
		os.Exit(1)
	}
	query := &models.MatchQuery{
		DocumentID:       fs.Arg(0),
		SourceCollection: *source,
		TargetCollection: *target,
		TopK:             *topK,
		ScoreThreshold:   thresholdPtr(*threshold),
	}
	if len(filter) > 0 {
		query.Filter = filter
	}

	var response *models.SearchResponse
	var err error
	if *serverURL != "" {
		response = &models.SearchResponse{}
		err = postJSON(*serverURL+"/api/v1/match", query, http.StatusOK, response)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		response, err = components.Engine.MatchDocument(context.Background(), query)
	}
	if err != nil {
		fatalf("Match failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "collection (default from config)")
	byPath := fs.Bool("path", false, "treat the argument as a file path and delete the document indexed from it")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: jobmatch delete [flags] <document-id|-path file>")
		os.Exit(1)
	}
	docID := fs.Arg(0)
	if *byPath {
		docID = docid.FromPath(docID)
	}

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	n, err := components.Indexer.DeleteDocument(context.Background(), *collection, docID)
	if err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Document deleted: %s (%d points)\n", docID, n)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Collections       map[string]int             `json:"collections"`
	DefaultCollection string                     `json:"default_collection"`
	VectorIndexType   string                     `json:"vector_index_type"`
	Runs              map[models.RunStatus]int64 `json:"runs,omitempty"`
	FailureEvents     int64                      `json:"failure_events"`
	DiskUsageBytes    *int64                     `json:"disk_usage_bytes,omitempty"`
	Watch             *struct {
		Directories []string      `json:"directories"`
		Stats       watcher.Stats `json:"stats"`
	} `json:"watch,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly)")
	runs := fs.Int("runs", 0, "also list this many recent ledger runs (direct mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	var status statusResponse
	var recent []*models.IndexRun
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		status, recent, err = directStatus(context.Background(), cfg, components, *runs)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}

	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, map[string]interface{}{"status": status, "runs": recent})
		return
	}
	counts := make(map[string]int64, len(status.Collections))
	for name, n := range status.Collections {
		counts[name] = int64(n)
	}
	cli.WriteCounts(os.Stdout, "collections (points)", counts)
	fmt.Printf("default_collection: %s\n", status.DefaultCollection)
	fmt.Printf("vector_index_type:  %s\n", status.VectorIndexType)
	if len(status.Runs) > 0 {
		byStatus := make(map[string]int64, len(status.Runs))
		for s, n := range status.Runs {
			byStatus[string(s)] = n
		}
		cli.WriteCounts(os.Stdout, "runs", byStatus)
		fmt.Printf("failure_events:     %d\n", status.FailureEvents)
	}
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if status.Watch != nil {
		fmt.Printf("watching:           %s\n", strings.Join(status.Watch.Directories, ", "))
		fmt.Printf("watch indexed=%d removed=%d failed=%d\n", status.Watch.Stats.Indexed, status.Watch.Stats.Removed, status.Watch.Stats.Failed)
	}
	if len(recent) > 0 {
		fmt.Println()
		_ = cli.WriteRuns(os.Stdout, recent, cli.OutputText)
	}
}

func directStatus(ctx context.Context, cfg *config.Config, c *Components, runLimit int) (statusResponse, []*models.IndexRun, error) {
	status := statusResponse{
		DefaultCollection: c.Store.DefaultCollection(),
		VectorIndexType:   c.Index.Type(),
	}
	var err error
	if status.Collections, err = c.Store.Counts(ctx); err != nil {
		return status, nil, err
	}
	if status.Runs, err = c.Ledger.CountRuns(ctx); err != nil {
		return status, nil, err
	}
	if status.FailureEvents, err = c.Ledger.CountEvents(ctx); err != nil {
		return status, nil, err
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.SnapshotPath); err == nil {
		status.DiskUsageBytes = &n
	}
	var recent []*models.IndexRun
	if runLimit > 0 {
		if recent, err = c.Ledger.ListRuns(ctx, storage.RunFilter{Limit: runLimit}); err != nil {
			return status, nil, err
		}
	}
	return status, recent, nil
}

func runWatch(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: jobmatch watch <add|remove|list> [path]")
		fmt.Println("  jobmatch watch add <path>     Add directory to watch")
		fmt.Println("  jobmatch watch remove <path>  Remove directory from watch")
		fmt.Println("  jobmatch watch list           List watched directories")
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not index files already in the directory")
	_ = fs.Parse(argsReorder(args[1:]))
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fatalf("Usage: jobmatch watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "sync": !*noSync}
		if err := postJSON(*serverURL+"/api/v1/watch/directories", body, http.StatusCreated, nil); err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: jobmatch watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp, http.StatusOK); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/api/v1/watch/directories", &out); err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

func postJSON(endpoint string, body interface{}, want int, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, want); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(endpoint string, out interface{}) error {
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func printUsage() {
	fmt.Println(`jobmatch - CV and job description semantic matching

Usage:
  jobmatch server [flags]                Start the HTTP server and directory watcher
  jobmatch index [flags] <path>          Index a file or directory (or -text)
  jobmatch import-csv [flags] <file>     Import each CSV row as a document
  jobmatch search [flags] <query>        Find similar chunks
  jobmatch match [flags] <document-id>   Find jobs for a CV (or any cross-collection match)
  jobmatch delete [flags] <document-id>  Delete a document's points
  jobmatch status [flags]                Show collections, runs and disk usage
  jobmatch watch <add|remove|list>       Manage watched directories
  jobmatch version                       Show version
  jobmatch help                          Show this help

Common Flags:
  -config string    Config file path (default: /usr/local/etc/jobmatch/config.yaml,
                    or ./config.yaml when present)
  -output string    Output format: text or json

Search and match use the running server unless -server "" is given.
With the memory index only one process opens the snapshot at a time, so
index, import-csv and delete wait for (then fail against) a running server.
Use the HTTP API while the server is up.

Examples:
  jobmatch server
  jobmatch import-csv -profile cv Resume.csv
  jobmatch import-csv -profile job -limit 500 job_descriptions.csv
  jobmatch index -collection job_embeddings ./jobs/
  jobmatch index -id cv_42 -owner u1 -text "Python developer with 5 years experience"
  jobmatch search -collection job_embeddings "python machine learning"
  jobmatch match -top-k 10 cv_0_1a2b3c4d
  jobmatch delete -collection cv_embeddings cv_0_1a2b3c4d
  jobmatch status -server "" -runs 20
  jobmatch watch add ~/inbox/cvs`)
}
