// Command rsl runs RSL scripts or, without arguments, starts the REPL.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"

	"github.com/podhmo/rsl"
	"github.com/podhmo/rsl/cache"
	"github.com/podhmo/rsl/hostlib"
	"github.com/podhmo/rsl/repl"
	"github.com/podhmo/rsl/token"
)

const historyFile = ".rsl_history"

func main() {
	var (
		configFile = flag.String("config", "", "path to a TOML config file")
		workDir    = flag.String("workdir", "", "directory imports and file natives are resolved against")
		parallel   = flag.Int("j", runtime.GOMAXPROCS(0), "number of scripts to run concurrently")
		logLevel   = new(slog.LevelVar)
	)
	logLevel.Set(slog.LevelWarn)
	flag.Var(&logLevelVar{levelVar: logLevel}, "log-level", "set log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rsl [flags] [file ...]\n\nWith no files, rsl starts an interactive session.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := &options{
		workDir:  *workDir,
		parallel: *parallel,
		logger:   logger,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	if *configFile != "" {
		cfg, err := LoadConfig(*configFile)
		if err != nil {
			slog.ErrorContext(ctx, "Error", slog.Any("error", err))
			os.Exit(1)
		}
		explicit := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if err := opts.apply(cfg, explicit, logLevel); err != nil {
			slog.ErrorContext(ctx, "Error", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if flag.NArg() == 0 {
		if err := runREPL(ctx, opts); err != nil {
			slog.ErrorContext(ctx, "Error", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}
	if err := runFiles(ctx, opts, flag.Args()); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("error", err))
		os.Exit(1)
	}
}

type options struct {
	workDir  string
	parallel int
	embedded map[string]string // import name -> source
	logger   *slog.Logger

	stdin          io.Reader
	stdout, stderr io.Writer
}

// apply merges cfg into o. Flags in explicit win over the file.
func (o *options) apply(cfg *Config, explicit map[string]bool, level *slog.LevelVar) error {
	if cfg.WorkDir != "" && !explicit["workdir"] {
		o.workDir = cfg.WorkDir
	}
	if cfg.Parallel > 0 && !explicit["j"] {
		o.parallel = cfg.Parallel
	}
	if cfg.LogLevel != "" && !explicit["log-level"] {
		lv, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		level.Set(lv)
	}
	if len(cfg.Modules) > 0 {
		o.embedded = make(map[string]string, len(cfg.Modules))
		for name, path := range cfg.Modules {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading module %q: %w", name, err)
			}
			o.embedded[name] = string(src)
		}
	}
	return nil
}

func (o *options) newInterpreter(stdout io.Writer, pc *cache.ProgramCache) (*rsl.Interpreter, error) {
	opts := []rsl.Option{
		rsl.WithStdin(o.stdin),
		rsl.WithStdout(stdout),
		rsl.WithStderr(o.stderr),
		rsl.WithLogger(o.logger),
		rsl.WithWorkDir(o.workDir),
	}
	if pc != nil {
		opts = append(opts, rsl.WithProgramCache(pc))
	}
	for name, src := range o.embedded {
		opts = append(opts, rsl.WithEmbeddedModule(name, src))
	}
	interp, err := rsl.NewInterpreter(opts...)
	if err != nil {
		return nil, err
	}
	hostlib.Install(interp)
	return interp, nil
}

// runFiles runs every file in its own interpreter. The interpreters share a
// FileSet and a ProgramCache, so a module imported by several scripts is
// parsed once. Output of each script is written in argument order.
func runFiles(ctx context.Context, o *options, files []string) error {
	pc := cache.New(token.NewFileSet(), nil, o.logger)

	outputs := make([]bytes.Buffer, len(files))
	failed := make([]error, len(files))
	direct := len(files) == 1 || o.parallel == 1

	g, ctx := errgroup.WithContext(ctx)
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i, file := range files {
		g.Go(func() error {
			var stdout io.Writer = &outputs[i]
			if direct {
				stdout = o.stdout
			}
			interp, err := o.newInterpreter(stdout, pc)
			if err != nil {
				return err // setup failures abort the whole run
			}
			if _, err := interp.RunFile(ctx, file); err != nil {
				slog.DebugContext(ctx, "script failed", slog.String("file", file), slog.Any("error", err))
				failed[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var nfailed int
	for i, file := range files {
		if !direct {
			if _, err := o.stdout.Write(outputs[i].Bytes()); err != nil {
				return err
			}
		}
		if failed[i] != nil {
			nfailed++
			fmt.Fprintf(o.stderr, "%s: %s\n", file, repl.FormatError(failed[i]))
		}
	}
	if nfailed > 0 {
		return fmt.Errorf("%d of %d scripts failed", nfailed, len(files))
	}
	return nil
}

func runREPL(ctx context.Context, o *options) error {
	interp, err := o.newInterpreter(o.stdout, nil)
	if err != nil {
		return err
	}
	if o.stdin != os.Stdin || !liner.TerminalSupported() {
		return repl.Run(ctx, repl.NewLineReader(o.stdin, io.Discard), o.stdout, interp)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	return repl.Run(ctx, &linerReader{state: ln}, o.stdout, interp)
}

// linerReader adapts a liner.State to repl.LineReader. Ctrl-C ends the
// session like Ctrl-D.
type linerReader struct {
	state *liner.State
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}
