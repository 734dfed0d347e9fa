package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/droidsym/internal/buildinfo"
	"github.com/modoterra/droidsym/pkg/config"
	"github.com/modoterra/droidsym/pkg/config/presets"
	"github.com/modoterra/droidsym/pkg/core"
	"github.com/modoterra/droidsym/pkg/daemon"
	"github.com/modoterra/droidsym/pkg/daemon/service"
	"github.com/modoterra/droidsym/pkg/pipeline"
	"github.com/modoterra/droidsym/pkg/policy"
	"github.com/modoterra/droidsym/pkg/providers/logs/adb"
	"github.com/modoterra/droidsym/pkg/providers/logs/filetail"
	"github.com/modoterra/droidsym/pkg/sink"
	"github.com/modoterra/droidsym/pkg/symbolizer"
	"github.com/modoterra/droidsym/pkg/transport/uds"
	tuimodel "github.com/modoterra/droidsym/pkg/tui/model"
)

const defaultSocket = "/tmp/droidsym.sock"

var (
	configPath string
	socketPath string

	flagPackage   string
	flagVerbosity int
	flagTime      bool
	flagRaw       bool
	flagInput     string
	flagFollow    bool
	flagLib       string
	flagSerial    string
	flagJournal   bool
	flagColor     string
	flagNoColor   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "droidsym",
	Short: "Live symbolication of Rust crashes in Android logcat",
	Long: "droidsym streams adb logcat for one package, filters it by severity, and resolves " +
		"native crash frames to function names and source lines with addr2line.",
	SilenceUsage: true,
	RunE:         runStream,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to droidsym.yaml (default ./droidsym.yaml if present)")
	pf.StringVar(&socketPath, "socket", "", "server socket path (default "+defaultSocket+")")

	pf.StringVarP(&flagPackage, "package", "p", "", "package name to watch")
	pf.IntVarP(&flagVerbosity, "loglevel", "v", 0, "verbosity 0..3 (errors and fatal, +warnings, +info, +debug/verbose)")
	pf.BoolVarP(&flagTime, "time", "t", false, "prefix lines with the logcat timestamp")
	pf.BoolVarP(&flagRaw, "rust", "r", false, "only print symbolized stack frames")
	pf.StringVar(&flagInput, "input", "", "read a saved logcat file instead of adb (- for stdin)")
	pf.BoolVar(&flagFollow, "follow", false, "keep reading --input as it grows")
	pf.StringVar(&flagLib, "lib", "", "shared library to resolve against")
	pf.StringVarP(&flagSerial, "serial", "s", "", "device serial passed to adb -s")
	pf.BoolVar(&flagJournal, "journal", false, "also send output to the systemd journal")
	pf.StringVar(&flagColor, "color", "", "color output: auto, always or never")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

// --- Settings ---

// loadConfig reads the config file, applies flags that were set, and
// normalizes and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := readConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("package") {
		c.Package = flagPackage
	}
	if flags.Changed("loglevel") {
		c.Verbosity = flagVerbosity
	}
	if flags.Changed("time") {
		c.Time = flagTime
	}
	if flags.Changed("rust") {
		c.Raw = flagRaw
	}
	if flags.Changed("input") {
		c.Input = flagInput
	}
	if flags.Changed("follow") {
		c.Follow = flagFollow
	}
	if flags.Changed("lib") {
		c.Resolver.Lib = flagLib
	}
	if flags.Changed("serial") {
		c.Device.Serial = flagSerial
	}
	if flags.Changed("journal") {
		c.Journal = flagJournal
	}
	if flags.Changed("color") {
		c.Color = flagColor
	}
	if flagNoColor {
		c.Color = config.ColorNever
	}
	if flags.Changed("socket") {
		c.Socket = socketPath
	}
	if c.Socket == "" {
		c.Socket = defaultSocket
	}

	// Normalization warnings must show even at verbosity 0.
	warn := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c.Normalize(warn)

	if errs := config.Validate(c); len(errs) > 0 {
		return nil, validationError(c.FilePath, errs)
	}
	return c, nil
}

func readConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	if _, err := os.Stat(config.DefaultFile); err == nil {
		return config.Load(config.DefaultFile)
	}
	return config.Default(), nil
}

func validationError(path string, errs []error) error {
	if path == "" {
		path = "configuration"
	}
	fmt.Fprintf(os.Stderr, "%s: %d error(s)\n", path, len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  • %s\n", e)
	}
	return fmt.Errorf("%s is invalid", path)
}

func newLogger(c *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(c.Verbosity)}))
}

func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// --- Root: stream ---

func runStream(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	ctx, cancel := signalContext(logger)
	defer cancel()

	return ignoreCanceled(stream(ctx, c, cmd.OutOrStdout(), nil, logger))
}

// stream runs one pipeline from the configured source to out and any extra
// sinks. serve is non-nil when the stream is hosted on a socket.
func stream(ctx context.Context, c *config.Config, out io.Writer, serve *daemon.Daemon, logger *slog.Logger) error {
	paths, err := c.ResolvePaths(config.OSEnv())
	if err != nil {
		return err
	}

	resolver, err := startResolver(ctx, c, paths, logger)
	if err != nil {
		return err
	}

	src := logSource(c, paths, logger)
	r, err := src.Open(ctx)
	if err != nil {
		resolver.Close()
		return fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer r.Close()
	logger.Info("streaming", "source", src.Name(), "package", c.Package, "lib", paths.Lib)

	sinks := sink.Multi{sink.NewWriter(out, useColor(c, out))}
	if c.Journal {
		j, err := sink.NewJournal("droidsym", c.Package)
		if err != nil {
			logger.Warn("journal output disabled", "err", err)
		} else {
			sinks = append(sinks, j)
		}
	}
	if serve != nil {
		sinks = append(sinks, serve.Sink())
	}

	p := pipeline.New(pipeline.Config{
		TargetPackage: c.Package,
		Output: policy.Config{
			Verbosity:         c.Verbosity,
			RawStacktraceOnly: c.Raw,
			IncludeTimestamp:  c.Time,
		},
	}, resolver, sinks, logger)

	if serve != nil {
		err = serve.Serve(ctx, p, r)
	} else {
		err = p.Run(ctx, r)
	}

	st := p.Stats()
	logger.Info("stream ended",
		"lines", st.LinesRead,
		"frames", st.AddressesFound,
		"resolved", st.AddressesResolved,
		"failures", st.ResolveFailures)
	if cache, ok := resolver.(*symbolizer.Cache); ok {
		hits, misses := cache.Stats()
		logger.Debug("symbol cache", "hits", hits, "misses", misses)
	}
	return err
}

func startResolver(ctx context.Context, c *config.Config, paths config.Paths, logger *slog.Logger) (symbolizer.Resolver, error) {
	if _, err := os.Stat(paths.Lib); err != nil {
		logger.Warn("library not found, frames will not resolve", "lib", paths.Lib)
	}
	proc, err := symbolizer.Start(ctx, symbolizer.Config{
		Path:          paths.Resolver,
		Args:          paths.ResolverArgs,
		ResponseLines: paths.ResponseLines,
		Demangle:      c.Resolver.Demangle,
	}, logger)
	if err != nil {
		return nil, err
	}
	if c.Resolver.Cache {
		return symbolizer.NewCache(proc), nil
	}
	return proc, nil
}

func logSource(c *config.Config, paths config.Paths, logger *slog.Logger) core.LogSource {
	if c.Input != "" {
		return filetail.New(c.Input, c.Follow, logger)
	}
	return adb.New(paths.ADB, c.Device.Serial, c.Device.LogcatArgs, os.Stderr, logger)
}

func useColor(c *config.Config, out io.Writer) bool {
	switch c.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return sink.IsTerminal(out)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- Serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream and symbolize while serving the output on a Unix socket",
	Long:  "Runs the same stream as the root command and lets `droidsym attach` and `droidsym resolve` connect to it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(c)
		ctx, cancel := signalContext(logger)
		defer cancel()

		d := daemon.New(c.Socket, c.Package, logger)
		logger.Info("starting droidsym server", "version", buildinfo.Version, "socket", c.Socket)
		return ignoreCanceled(stream(ctx, c, cmd.OutOrStdout(), d, logger))
	},
}

// --- Attach ---

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Open a live viewer on a running droidsym serve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sock := resolveSocket(cmd)
		if _, err := os.Stat(sock); err != nil {
			return fmt.Errorf("no server at %s, start one with droidsym serve", sock)
		}
		p := tea.NewProgram(tuimodel.New(sock), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

// resolveSocket picks the socket without requiring a valid stream config.
func resolveSocket(cmd *cobra.Command) string {
	if cmd.Flags().Changed("socket") {
		return socketPath
	}
	if c, err := readConfig(); err == nil && c.Socket != "" {
		return c.Socket
	}
	return defaultSocket
}

// --- Resolve ---

var resolveLocal bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <address>...",
	Short: "Symbolize addresses through a running server or a local addr2line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resolveLocal {
			if client, err := uds.Dial(resolveSocket(cmd)); err == nil {
				defer client.Close()
				return resolveRemote(cmd.OutOrStdout(), client, args)
			}
		}
		return resolveWithLocal(cmd, args)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveLocal, "local", false, "always start a local resolver")
}

func resolveRemote(w io.Writer, client *uds.Client, addrs []string) error {
	var errs []error
	for _, addr := range addrs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		resp, err := client.Request(ctx, uds.MethodResolve, uds.ResolveRequest{Address: addr})
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var out uds.ResolveResponse
		if err := resp.UnmarshalData(&out); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", out.Address, out.Symbol)
	}
	return errors.Join(errs...)
}

func resolveWithLocal(cmd *cobra.Command, addrs []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	paths, err := c.ResolverPaths(config.OSEnv())
	if err != nil {
		return err
	}
	resolver, err := startResolver(cmd.Context(), c, paths, logger)
	if err != nil {
		return err
	}
	defer resolver.Close()

	w := cmd.OutOrStdout()
	for _, addr := range addrs {
		sym, err := resolver.Resolve(addr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", addr, err)
		}
		fmt.Fprintf(w, "%s %s\n", addr, sym)
	}
	return nil
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage droidsym.yaml",
}

var (
	configInitRoot   string
	configInitOutput string
	configInitForce  bool
)

var configInitCmd = &cobra.Command{
	Use:   "init [preset]",
	Short: "Generate a droidsym.yaml",
	Long:  "Without a preset the built-in defaults are written. Available presets: cargo",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var c *config.Config
		preset := ""
		if len(args) > 0 {
			preset = args[0]
		}
		switch preset {
		case "":
			c = config.Default()
		case "cargo":
			var err error
			if c, err = presets.GenerateCargo(configInitRoot); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown preset: %s (available: cargo)", preset)
		}

		path := configInitOutput
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(c, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s for %s\n", path, c.Package)
		if c.Resolver.Lib != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  lib: %s\n", c.Resolver.Lib)
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a droidsym.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFile
		if len(args) > 0 {
			path = args[0]
		}

		c, err := config.Load(path)
		if err != nil {
			return err
		}

		if errs := config.Validate(c); len(errs) > 0 {
			return validationError(path, errs)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (package %s)\n", path, c.Package)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitRoot, "root", ".", "project root directory")
	configInitCmd.Flags().StringVar(&configInitOutput, "output", config.DefaultFile, "output file path")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run droidsym serve as a systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start the user service for the current config",
	RunE: func(_ *cobra.Command, _ []string) error {
		bin, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot locate droidsym binary: %w", err)
		}
		u := service.Unit{Binary: bin, Env: map[string]string{}}

		path := configPath
		if path == "" {
			path = config.DefaultFile
		}
		if _, err := os.Stat(path); err == nil {
			if u.Config, err = filepath.Abs(path); err != nil {
				return err
			}
		}
		for _, k := range []string{config.EnvSDKRoot, config.EnvNDKHome} {
			if v, ok := os.LookupEnv(k); ok {
				u.Env[k] = v
			}
		}

		if err := service.Install(u); err != nil {
			return err
		}
		fmt.Println("droidsym user service installed")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the user service",
	RunE: func(_ *cobra.Command, _ []string) error {
		return service.Uninstall()
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show socket and service state",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(resolveSocket(cmd)))
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "droidsym %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
