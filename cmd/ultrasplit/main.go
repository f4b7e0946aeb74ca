// Package main provides the CLI entrypoint for ultrasplit.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/ultrasplit/internal/api"
	"github.com/verte-zerg/ultrasplit/internal/catalog"
	"github.com/verte-zerg/ultrasplit/internal/config"
	"github.com/verte-zerg/ultrasplit/internal/metrics"
	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/race"
	"github.com/verte-zerg/ultrasplit/internal/report"
	"github.com/verte-zerg/ultrasplit/internal/session"
	"github.com/verte-zerg/ultrasplit/internal/store"
	"github.com/verte-zerg/ultrasplit/internal/viewer"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	timezone   string

	raceID         string
	raceFile       string
	filterSearch   string
	filterCategory string
	filterSex      string
	filterCountry  string
	focusRank      int

	reportHistogram bool
	reportSplits    bool
	reportWidth     int
	reportFormat    string

	importID   string
	importName string

	racesDelete string

	serveAddr string
)

// levelVar is shared by the default logger so serve can change the level
// when the config file is edited.
var levelVar = new(slog.LevelVar)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ultrasplit",
		Short:         "Ultra-trail split times viewer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runViewCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "race catalog database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "display time zone: offset like +01:00, UTC or IANA name (default race time, UTC+1)")
	addSelectorFlags(rootCmd)

	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newRacesCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addSelectorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&raceID, "race", "", "race id from the catalog")
	cmd.Flags().StringVar(&raceFile, "file", "", "race file (.json, .yaml) or race directory")
	cmd.Flags().StringVar(&filterSearch, "search", "", "comma-separated name fragments or bibs")
	cmd.Flags().StringVar(&filterCategory, "category", "", "category filter")
	cmd.Flags().StringVar(&filterSex, "sex", "", "sex filter (Male, Female, Unknown)")
	cmd.Flags().StringVar(&filterCountry, "country", "", "country code filter")
	cmd.Flags().IntVar(&focusRank, "focus", 0, "sort by split time at this checkpoint rank")
}

// env holds what every command resolves before doing its work.
type env struct {
	cfg    config.FileConfig
	logger *slog.Logger
	loc    *time.Location
}

func setup(cmd *cobra.Command) (env, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return env{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "timezone", &timezone, fileCfg.View.Timezone)
	if !cmd.Flags().Changed("race") && !cmd.Flags().Changed("file") {
		applyStringConfig(cmd, "race", &raceID, fileCfg.Race.Default)
		applyStringConfig(cmd, "file", &raceFile, fileCfg.Race.File)
	}

	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return env{}, err
	}
	levelVar.Set(level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	loc, err := report.ParseLocation(timezone)
	if err != nil {
		return env{}, err
	}
	return env{cfg: fileCfg, logger: logger, loc: loc}, nil
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse a race in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runViewCmd,
	}
	addSelectorFlags(cmd)
	return cmd
}

func runViewCmd(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	s, closeFn, err := openSession(cmd, e)
	if err != nil {
		return err
	}
	defer closeFn()

	opts := viewer.Options{Location: e.loc}
	if d := e.cfg.View.FilterDebounce; d != nil {
		opts.FilterDebounce = d.Duration
	}
	if d := e.cfg.View.ResizeDebounce; d != nil {
		opts.ResizeDebounce = d.Duration
	}
	m := viewer.NewModel(s, opts)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		err := config.Watch(ctx, configPath, e.logger, func(cfg config.FileConfig) {
			var filterDelay, resizeDelay time.Duration
			if cfg.View.FilterDebounce != nil {
				filterDelay = cfg.View.FilterDebounce.Duration
			}
			if cfg.View.ResizeDebounce != nil {
				resizeDelay = cfg.View.ResizeDebounce.Duration
			}
			m.SetDebounce(filterDelay, resizeDelay)
		})
		if err != nil {
			e.logger.Debug("config watch disabled", "err", err)
		}
	}()
	return viewer.Run(ctx, m)
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the ranked table",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	addSelectorFlags(cmd)
	cmd.Flags().BoolVar(&reportHistogram, "histogram", false, "append the finish time histogram")
	cmd.Flags().BoolVar(&reportSplits, "splits", false, "print split details for every row")
	cmd.Flags().IntVar(&reportWidth, "width", 0, "histogram width (default: terminal width)")
	cmd.Flags().StringVar(&reportFormat, "format", formatText, "output format (text, yaml)")
	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	if reportFormat != formatText && reportFormat != formatYAML {
		return fmt.Errorf("--format must be %s or %s", formatText, formatYAML)
	}
	if reportWidth < 0 {
		return fmt.Errorf("--width must be >= 0")
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	s, closeFn, err := openSession(cmd, e)
	if err != nil {
		return err
	}
	defer closeFn()

	rep := report.BuildReport(s, reportHistogram)
	opts := report.Options{
		Location:  e.loc,
		Histogram: reportHistogram,
		Splits:    reportSplits,
		Width:     reportWidth,
	}
	if reportFormat == formatYAML {
		return report.WriteYAML(cmd.OutOrStdout(), rep, opts)
	}
	return report.WriteText(cmd.OutOrStdout(), rep, opts)
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Validate a race and store it in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importID, "id", "", "race id (default: file name without extension)")
	cmd.Flags().StringVar(&importName, "name", "", "display name (default: id)")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	path := args[0]
	id := importID
	if id == "" {
		id = catalog.IDFromPath(path)
	}
	if err := store.ValidateID(id); err != nil {
		return err
	}
	data, err := race.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load race %s: %w", path, err)
	}
	session.LogDiagnostics(e.logger.With("race", id), session.Prepare(data).Diagnostics)

	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	info, err := st.Import(cmd.Context(), id, importName, source, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d participants, %d results, %d checkpoints\n",
		info.ID, info.Participants, info.Results, info.Checkpoints)
	return err
}

func newRacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "races",
		Short: "List races in the catalog",
		Args:  cobra.NoArgs,
		RunE:  runRacesCmd,
	}
	cmd.Flags().StringVar(&racesDelete, "delete", "", "remove the race with this id")
	return cmd
}

func runRacesCmd(cmd *cobra.Command, _ []string) error {
	if _, err := setup(cmd); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if racesDelete != "" {
		if err := st.Delete(cmd.Context(), racesDelete); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", racesDelete)
		return err
	}

	infos, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		logErrln("No races imported. Import one with: ultrasplit import PATH")
		return nil
	}
	for _, line := range raceListing(infos) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func raceListing(infos []model.RaceInfo) []string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.ID,
			info.Name,
			strconv.Itoa(info.Participants),
			strconv.Itoa(info.Results),
			strconv.Itoa(info.Checkpoints),
			info.ImportedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	headers := []string{"ID", "Name", "Participants", "Results", "CPs", "Imported"}
	return report.Table(headers, rows, map[int]bool{2: true, 3: true, 4: true})
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve race views as JSON",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&raceID, "race", "", "default race id")
	cmd.Flags().StringVar(&raceFile, "file", "", "serve a race file or directory in addition to the catalog")
	cmd.Flags().StringVar(&serveAddr, "addr", config.DefaultAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, e.cfg.Server.Addr)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	c := catalog.New(st, e.logger)
	defaultRace := raceID
	if raceFile != "" {
		id := catalog.IDFromPath(raceFile)
		if err := c.AddFile(id, raceFile); err != nil {
			return err
		}
		if defaultRace == "" {
			defaultRace = id
		}
	}
	h := api.New(c, api.Options{
		DefaultRace: defaultRace,
		Location:    e.loc,
		Logger:      e.logger,
		Metrics:     metrics.NewRegistry(),
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	raceChanged := cmd.Flags().Changed("race") || cmd.Flags().Changed("file")
	levelChanged := cmd.Flags().Changed("log-level")
	go func() {
		err := config.Watch(ctx, configPath, e.logger, func(cfg config.FileConfig) {
			if cfg.Log.Level != nil && !levelChanged {
				if level, err := config.ParseLevel(*cfg.Log.Level); err == nil {
					levelVar.Set(level)
				} else {
					e.logger.Warn("ignoring log level from config", "err", err)
				}
			}
			if cfg.Race.Default != nil && !raceChanged {
				h.SetDefaultRace(*cfg.Race.Default)
				e.logger.Info("default race changed", "race", *cfg.Race.Default)
			}
		})
		if err != nil {
			e.logger.Warn("config watch disabled", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("HTTP server listening", "addr", serveAddr, "default_race", defaultRace)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	e.logger.Info("ultrasplit server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// openSession loads the selected race and applies the filter flags.
func openSession(cmd *cobra.Command, e env) (*session.Session, func(), error) {
	var st *store.Store
	closeFn := func() {
		if st != nil {
			closeStore(st)
		}
	}

	var c *catalog.Catalog
	id := raceID
	switch {
	case raceFile != "":
		c = catalog.New(nil, e.logger)
		id = catalog.IDFromPath(raceFile)
		if err := c.AddFile(id, raceFile); err != nil {
			return nil, closeFn, err
		}
	case raceID != "":
		var err error
		st, err = openStore()
		if err != nil {
			return nil, closeFn, err
		}
		c = catalog.New(st, e.logger)
	default:
		return nil, closeFn, fmt.Errorf("no race selected: pass --race or --file, or set [race] in %s", configPath)
	}

	rc, err := c.Race(cmd.Context(), id)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}

	s := session.New(rc, e.logger)
	s.SetFilters(model.Filters{
		Search:   filterSearch,
		Category: filterCategory,
		Sex:      filterSex,
		Country:  strings.ToLower(strings.TrimSpace(filterCountry)),
	})
	if cmd.Flags().Changed("focus") {
		focus := focusRank
		s.SetFocus(&focus)
	}
	return s, closeFn, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# ultrasplit configuration
# Uncomment a value to enable it. CLI flags override config values.

[race]
# default = "tor330"            # Catalog race used when no --race/--file is given
# file = "/path/to/race.json"   # Race file used when no --race/--file is given

[view]
# filter-debounce = %q       # Delay before typed filters apply
# resize-debounce = %q       # Delay before a terminal resize re-renders
# timezone = "+01:00"          # Display zone for scan times

[server]
# addr = %q                 # Listen address for ultrasplit serve

[log]
# level = %q                  # debug, info, warn, error
`,
		config.DefaultFilterDebounce.String(),
		config.DefaultResizeDebounce.String(),
		config.DefaultAddr,
		config.DefaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
