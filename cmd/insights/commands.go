package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/aggregate"
	"github.com/VedaVachan/COD-Mobile-insights/internal/config"
	"github.com/VedaVachan/COD-Mobile-insights/internal/dashboard"
	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
	"github.com/VedaVachan/COD-Mobile-insights/internal/events"
	"github.com/VedaVachan/COD-Mobile-insights/internal/export"
	"github.com/VedaVachan/COD-Mobile-insights/internal/gallery"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
	"github.com/VedaVachan/COD-Mobile-insights/internal/logging"
	"github.com/VedaVachan/COD-Mobile-insights/internal/normalize"
	"github.com/VedaVachan/COD-Mobile-insights/internal/sample"
)

// CLI helper variables
var baseURL = "http://localhost:8080"

// cliLogger logs warnings and errors to stderr in console format
func cliLogger() *zap.Logger {
	logger, err := logging.New("warn", true)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadDataset reads and normalizes a local file or URL
func loadDataset(source string) *domain.Dataset {
	batch, err := loader.New(nil, cliLogger()).Load(context.Background(), source)
	if err != nil {
		fatal(err)
	}
	return dashboard.NewDataset(batch, time.Now())
}

// sourceArg returns the single positional source argument
func sourceArg(fs *flag.FlagSet, usage string) string {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func cmdSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	fs.Parse(args)
	source := sourceArg(fs, "insights summary <file|url>")

	ds := loadDataset(source)
	printDashboard(os.Stdout, dashboard.Build(ds))
}

func cmdTimeline(args []string) {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	limit := fs.Int("limit", 20, "number of matches to show (0 for all)")
	fs.Parse(args)
	source := sourceArg(fs, "insights timeline <file|url> [--limit N]")

	ds := loadDataset(source)
	timeline := aggregate.Timeline(ds.Matches)
	if *limit > 0 && len(timeline) > *limit {
		timeline = timeline[:*limit]
	}
	printTimeline(os.Stdout, timeline)
}

// cmdDashboard prints the dashboard of a running server
func cmdDashboard(args []string) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	url := fs.String("url", "", "base URL of the insights server")
	refresh := fs.Bool("refresh", false, "ask the server to reload its static source")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	path := "/api/dashboard"
	if *refresh {
		path += "?refresh=true"
	}
	var d domain.Dashboard
	if err := getJSON(path, &d); err != nil {
		fatal(err)
	}
	printDashboard(os.Stdout, d)
}

// loadCLIConfigFromFlags derives baseURL from the config, unless url is set
func loadCLIConfigFromFlags(configPath, url string) {
	if url != "" {
		baseURL = strings.TrimSuffix(url, "/")
		return
	}
	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	host := cfg.Server.ListenAddr
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	baseURL = fmt.Sprintf("http://%s:%d", host, cfg.Server.HTTPPort)
}

func getJSON(path string, target interface{}) error {
	url := baseURL + path
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output file (required)")
	format := fs.String("format", "", "csv or sqlite (default: from --out extension)")
	fs.Parse(args)
	source := sourceArg(fs, "insights export <file|url> --out <path> [--format csv|sqlite]")

	if *out == "" {
		fmt.Fprintln(os.Stderr, "Error: --out is required")
		os.Exit(1)
	}
	f := *format
	if f == "" {
		f = exportFormat(*out)
	}

	ds := loadDataset(source)
	switch f {
	case "csv":
		if err := writeFileWith(*out, func(w io.Writer) error { return export.WriteCSV(w, ds.Matches) }); err != nil {
			fatal(err)
		}
	case "sqlite":
		if err := export.WriteSQLite(context.Background(), *out, ds); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown format %q: use csv or sqlite", f))
	}
	fmt.Printf("Exported %d matches to %s\n", len(ds.Matches), *out)
}

// exportFormat picks the export format from a file extension
func exportFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "csv"
	}
}

// writeFileWith creates path and hands it to write
func writeFileWith(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	count := fs.Int("count", 30, fmt.Sprintf("number of matches (1-%d)", sample.MaxCount))
	seed := fs.Uint64("seed", 0, "random seed (default: time based)")
	out := fs.String("out", "", "output file (default: stdout)")
	format := fs.String("format", "json", "json (raw rows) or csv (normalized)")
	fs.Parse(args)

	if *count < 1 || *count > sample.MaxCount {
		fatal(fmt.Errorf("--count must be between 1 and %d", sample.MaxCount))
	}
	s := *seed
	if !fs.Changed("seed") {
		s = uint64(time.Now().UnixNano())
	}

	now := time.Now()
	rows := sample.Generate(*count, now, sample.NewRand(s))

	var write func(io.Writer) error
	switch *format {
	case "json":
		write = func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
	case "csv":
		write = func(w io.Writer) error { return export.WriteCSV(w, normalize.All(rows, now)) }
	default:
		fatal(fmt.Errorf("unknown format %q: use json or csv", *format))
	}

	if *out == "" {
		if err := write(os.Stdout); err != nil {
			fatal(err)
		}
		return
	}
	if err := writeFileWith(*out, write); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %d sample matches to %s\n", len(rows), *out)
}

// cmdWeapons builds the weapons gallery from loose images and archives
func cmdWeapons(args []string) {
	fs := flag.NewFlagSet("weapons", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	out := fs.String("out", "", "output directory (default: gallery.output_dir)")
	size := fs.Int("size", 0, "thumbnail size in pixels (default: gallery.thumb_size)")
	fs.Parse(args)

	cfg, err := loadCLIConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	src := cfg.Gallery.SourceDir
	if fs.NArg() > 0 {
		src = fs.Arg(0)
	}
	dst := cfg.Gallery.OutputDir
	if *out != "" {
		dst = *out
	}
	thumb := cfg.Gallery.ThumbSize
	if *size > 0 {
		thumb = *size
	}
	if src == "" || dst == "" {
		fmt.Fprintln(os.Stderr, "Usage: insights weapons [srcDir] [--out dir] [--size N]")
		fmt.Fprintln(os.Stderr, "Source and output directories come from gallery.source_dir and gallery.output_dir when omitted.")
		os.Exit(1)
	}

	m, err := gallery.Build(context.Background(), src, dst, thumb, cliLogger())
	if err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WEAPON\tFILE\tSIZE\tSOURCE")
	fmt.Fprintln(w, "------\t----\t----\t------")
	for _, wp := range m.Weapons {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n", wp.Name, wp.File, wp.Width, wp.Height, wp.Source)
	}
	w.Flush()

	for _, warn := range m.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warn)
	}
	fmt.Printf("\n%d weapons written to %s\n", len(m.Weapons), dst)
}

// cmdWatch prints dataset events published over NATS until interrupted
func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	natsURL := fs.String("nats", "", "NATS server URL (default: events.nats_url)")
	subject := fs.String("subject", "", "subject prefix (default: events.subject)")
	fs.Parse(args)

	cfg, err := loadCLIConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	url := cfg.Events.NATSURL
	if *natsURL != "" {
		url = *natsURL
	}
	if url == "" && cfg.Events.Embedded {
		url = fmt.Sprintf("nats://%s:%d", cfg.Events.EmbeddedHost, cfg.Events.EmbeddedPort)
	}
	if url == "" {
		fatal(fmt.Errorf("no NATS URL: set --nats or events.nats_url"))
	}
	subj := cfg.Events.Subject
	if *subject != "" {
		subj = *subject
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s.> on %s (Ctrl-C to stop)\n", subj, url)
	err = events.Watch(ctx, url, subj, func(subject string, event domain.Event) {
		data, _ := json.Marshal(event.Data)
		fmt.Printf("%s  %-15s %s\n", event.Timestamp.Local().Format("15:04:05"), event.Type, data)
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func loadCLIConfig(path string) (*config.Config, error) {
	return config.Load(resolveConfigPath(path))
}

func printDashboard(out io.Writer, d domain.Dashboard) {
	s := d.Summary
	fmt.Fprintf(out, "Source:   %s\n", d.Source)
	fmt.Fprintf(out, "Matches:  %d\n", s.Total)
	fmt.Fprintf(out, "Win rate: %.1f%% (%d wins)\n", s.WinRate, s.Wins)
	fmt.Fprintf(out, "MVP rate: %.1f%% (%d MVPs)\n", s.MVPRate, s.MVPs)
	fmt.Fprintf(out, "K/D:      %.2f\n", s.KD)
	fmt.Fprintf(out, "Avg kills %.1f  deaths %.1f  assists %.1f  score %.0f  accuracy %.1f%%\n",
		s.AvgKills, s.AvgDeaths, s.AvgAssists, s.AvgScore, s.AvgAccuracy)

	printGroups(out, "MAP", d.Maps)
	printGroups(out, "MODE", d.Modes)
}

func printGroups(out io.Writer, title string, groups []domain.GroupBreakdown) {
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tMATCHES\tWINS\tWIN%%\tKILLS\tAVG KILLS\n", title)
	fmt.Fprintf(w, "%s\t-------\t----\t----\t-----\t---------\n", strings.Repeat("-", len(title)))
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%.0f\t%.1f\n", g.Key, g.Matches, g.Wins, g.WinRate, g.Kills, g.AvgKills)
	}
	w.Flush()
}

func printTimeline(out io.Writer, matches []domain.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tMAP\tMODE\tRESULT\tK/D/A\tSCORE\tMVP")
	fmt.Fprintln(w, "--\t----\t---\t----\t------\t-----\t-----\t---")
	for _, m := range matches {
		mvp := ""
		if m.MVP {
			mvp = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f/%.0f/%.0f\t%.0f\t%s\n",
			m.ID, m.Date.Format("2006-01-02 15:04"), m.Map, m.Mode, m.Result,
			m.Kills, m.Deaths, m.Assists, m.Score, mvp)
	}
	w.Flush()
}
