// Command cmdline runs programs on this host or on remote machines and
// reports their output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/deixis/cmdline"
	"github.com/deixis/cmdline/internal/config"
	"github.com/deixis/cmdline/internal/history"
	"github.com/deixis/cmdline/internal/machines"
	cmdmcp "github.com/deixis/cmdline/internal/mcp"
	"github.com/deixis/cmdline/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("cmdline: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "exec":
		err = execMain(args)
	case "show":
		err = showMain(args)
	case "machines":
		err = machinesMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(cmdline.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "cmdline: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: cmdline <command> [flags] [args]

Commands:
  exec        Run a program: cmdline exec [-on m1,m2] program [args...]
  show        Show a stored run by ID
  machines    List the machines programs can run on
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "cmdline <command> -h" for command-specific flags.`)
}

// --- exec ---

func execMain(args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	onFlag := fs.String("on", "local", "comma-separated machines to run on")
	jsonFlag := fs.Bool("json", false, "output results as JSON")
	verboseFlag := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("exec: missing program")
	}
	command, cmdArgs := fs.Arg(0), fs.Args()[1:]

	app, err := newApp(*verboseFlag)
	if err != nil {
		return err
	}

	targets, err := machines.ResolveAll(app.cfg, machines.ParseList(*onFlag))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var attempts []runner.Attempt
	if len(targets) == 1 {
		started := time.Now()
		outcome, err := app.runnerFor(targets[0]).Execute(ctx, command, cmdArgs)
		attempts = []runner.Attempt{{
			Target:   targets[0].Name(),
			Outcome:  outcome,
			Err:      err,
			Started:  started,
			Duration: time.Since(started),
		}}
	} else {
		attempts = app.runner.ExecuteEach(ctx, targets, command, cmdArgs)
	}

	var records []*history.Record
	for _, a := range attempts {
		if a.Err != nil {
			continue
		}
		rec := history.NewRecord(a, command, cmdArgs)
		if err := app.store.Save(rec); err != nil {
			app.logger.Warn("saving run", slog.String("run_id", rec.ID), slog.Any("error", err))
		}
		records = append(records, rec)
	}

	if *jsonFlag {
		if err := writeJSON(os.Stdout, attempts, records); err != nil {
			return err
		}
	} else if len(attempts) == 1 {
		return reportSingle(attempts[0])
	} else {
		fmt.Print(formatAttempts(attempts))
	}

	if failed(attempts) {
		os.Exit(1)
	}
	return nil
}

// reportSingle writes a single outcome the way the program itself would
// have: output text on stdout, error text on stderr.
func reportSingle(a runner.Attempt) error {
	if a.Err != nil {
		return a.Err
	}
	if a.Outcome.IsError() {
		fmt.Fprint(os.Stderr, a.Outcome.Text)
		os.Exit(1)
	}
	fmt.Print(a.Outcome.Text)
	return nil
}

func formatAttempts(attempts []runner.Attempt) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	for i, a := range attempts {
		if i > 0 {
			w("\n")
		}
		switch {
		case a.Err != nil:
			w("== %s: %s\n%v\n", a.Target, runner.FailureLabel(a.Err), a.Err)
		default:
			w("== %s: %s (run %s)\n", a.Target, a.Outcome.Kind, a.Outcome.RunID)
			w("%s", a.Outcome.Text)
			if n := len(a.Outcome.Text); n > 0 && a.Outcome.Text[n-1] != '\n' {
				w("\n")
			}
		}
	}
	return string(b)
}

type jsonAttempt struct {
	Target string          `json:"target"`
	Run    *history.Record `json:"run,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func writeJSON(w io.Writer, attempts []runner.Attempt, records []*history.Record) error {
	out := make([]jsonAttempt, 0, len(attempts))
	next := 0
	for _, a := range attempts {
		ja := jsonAttempt{Target: a.Target}
		if a.Err != nil {
			ja.Error = a.Err.Error()
		} else {
			ja.Run = records[next]
			next++
		}
		out = append(out, ja)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func failed(attempts []runner.Attempt) bool {
	for _, a := range attempts {
		if a.Err != nil || a.Outcome.IsError() {
			return true
		}
	}
	return false
}

// --- show ---

func showMain(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the run as JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("show: expected one run ID")
	}

	app, err := newApp(false)
	if err != nil {
		return err
	}
	rec, err := app.store.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	fmt.Print(history.Format(rec))
	return nil
}

// --- machines ---

func machinesMain(args []string) error {
	fs := flag.NewFlagSet("machines", flag.ExitOnError)
	_ = fs.Parse(args)

	app, err := newApp(false)
	if err != nil {
		return err
	}
	for _, name := range machines.Names(app.cfg) {
		if m, ok := app.cfg.Machine(name); ok {
			fmt.Printf("%-15s %s@%s:%d\n", name, m.UserOrDefault(), m.Host, m.PortOrDefault())
		} else {
			fmt.Printf("%-15s this host\n", name)
		}
	}
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verboseFlag := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(cmdmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(*verboseFlag)
	if err != nil {
		return err
	}

	store := history.NewLRUStore(app.cfg.HistorySize(), app.store)
	server := cmdmcp.NewServer(app.cfg, app.runner, store)

	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	runner *runner.Runner
	store  *history.DiskStore
}

func newApp(verbose bool) (*app, error) {
	workdir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}

	loaded, err := config.Load(workdir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir, err := cfg.HistoryDir()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		runner: &runner.Runner{
			Logger:      logger,
			Parallelism: cfg.Parallel(),
		},
		store: history.NewDiskStore(dir),
	}, nil
}

// runnerFor returns a runner bound to target, sharing the app's settings.
func (a *app) runnerFor(target runner.Target) *runner.Runner {
	r := *a.runner
	r.Target = target
	return &r
}
