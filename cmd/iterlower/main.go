package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/iterlower"
	"github.com/stealthrocket/iterlower/compiler"
	"github.com/stealthrocket/iterlower/conformance"
	"github.com/stealthrocket/iterlower/eval"
	"github.com/stealthrocket/iterlower/ir"
	"github.com/stealthrocket/iterlower/irfile"
)

const usage = `
iterlower normalizes modules and lowers their iterators.

USAGE:
  iterlower [OPTIONS] FILE...

OPTIONS:
  -h, --help           Show this help information
  -v, --version        Show the version
  -c, --config PATH    Load the normalization configuration from PATH
  -o, --output DIR     Write each normalized module to DIR instead of stdout
  -r, --run FN[:ARGS]  Call FN with comma separated ARGS after normalizing,
                       printing its result or the values of the iterator
                       it returns
  -j, --jobs N         Process up to N files concurrently
      --check          Treat files as conformance suites and run them
      --debug          Log debug messages in a human readable format
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	config compiler.Config
	output string
	call   string
	args   []eval.Value
	logger *zap.Logger
}

func run() error {
	flag.Usage = func() { println(usage[1:]) }

	var (
		showVersion bool
		configPath  string
		output      string
		runFlag     string
		jobs        int
		check       bool
		debugLog    bool
	)
	flag.BoolVar(&showVersion, "v", false, "")
	flag.BoolVar(&showVersion, "version", false, "")
	flag.StringVar(&configPath, "c", "", "")
	flag.StringVar(&configPath, "config", "", "")
	flag.StringVar(&output, "o", "", "")
	flag.StringVar(&output, "output", "", "")
	flag.StringVar(&runFlag, "r", "", "")
	flag.StringVar(&runFlag, "run", "", "")
	flag.IntVar(&jobs, "j", runtime.GOMAXPROCS(0), "")
	flag.IntVar(&jobs, "jobs", runtime.GOMAXPROCS(0), "")
	flag.BoolVar(&check, "check", false, "")
	flag.BoolVar(&debugLog, "debug", false, "")

	flag.Parse()

	if showVersion {
		fmt.Println(version())
		return nil
	}
	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		return errors.New("no input files")
	}

	opts := options{output: output}
	if configPath != "" {
		c, err := compiler.LoadConfig(configPath)
		if err != nil {
			return err
		}
		opts.config = c
	}
	if runFlag != "" {
		call, args, err := parseRun(runFlag)
		if err != nil {
			return err
		}
		opts.call, opts.args = call, args
	}

	logger, err := newLogger(debugLog, opts.config)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	opts.logger = logger
	compiler.SetLogger(logger)

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return err
		}
	}

	process := opts.normalize
	if check {
		process = opts.check
	}

	// Each file is processed independently; results are printed in the
	// order of the command line once every file is done.
	results := make([]bytes.Buffer, len(paths))
	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := process(&results[i], path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	err = g.Wait()
	for i := range results {
		if _, werr := results[i].WriteTo(os.Stdout); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func newLogger(debugLog bool, c compiler.Config) (*zap.Logger, error) {
	if debugLog {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(c.Level())
	return config.Build()
}

// normalize loads the module in path, normalizes it and writes the result
// to w or to the output directory. When a function to run was given, its
// outcome is written to w.
func (o *options) normalize(w io.Writer, path string) error {
	mod, err := irfile.Load(path)
	if err != nil {
		return err
	}
	logger := o.logger.With(zap.String("file", path))
	err = compiler.Normalize(mod,
		compiler.WithConfig(o.config),
		compiler.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if o.output != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".ir"
		var b bytes.Buffer
		if err := ir.Fprint(&b, mod); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(o.output, name), b.Bytes(), 0o644); err != nil {
			return err
		}
	} else if o.call == "" {
		return ir.Fprint(w, mod)
	}

	if o.call == "" {
		return nil
	}
	in, err := eval.New(mod, eval.WithLogger(logger))
	if err != nil {
		return err
	}
	v, err := in.Call(o.call, o.args...)
	if err != nil {
		return err
	}
	it, err := in.Iterator(v)
	if err != nil {
		// Not an iterator: print the result itself.
		fmt.Fprintln(w, eval.Format(v))
		return nil
	}
	return iterlower.Run(it, func(v any) bool {
		fmt.Fprintln(w, eval.Format(v))
		return true
	})
}

// check runs the conformance suite in path and reports failed cases to w.
func (o *options) check(w io.Writer, path string) error {
	s, err := conformance.Load(path)
	if err != nil {
		return err
	}
	failed := 0
	err = s.Run(func(c *conformance.Case, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s:%d: %s: %v\n", path, c.Line, c.Name, err)
		}
	}, conformance.WithLogger(o.logger.With(zap.String("file", path))))
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(s.Cases))
	}
	fmt.Fprintf(w, "ok   %s (%d cases)\n", path, len(s.Cases))
	return nil
}

// parseRun splits a --run value of the form FN[:ARGS]. Arguments are
// integers, booleans or strings, quoted or not.
func parseRun(s string) (string, []eval.Value, error) {
	name, list, _ := strings.Cut(s, ":")
	if name == "" {
		return "", nil, fmt.Errorf("--run %q: missing function name", s)
	}
	if list == "" {
		return name, nil, nil
	}
	var args []eval.Value
	for _, a := range strings.Split(list, ",") {
		a = strings.TrimSpace(a)
		if i, err := strconv.ParseInt(a, 0, 64); err == nil {
			args = append(args, i)
		} else if a == "true" || a == "false" {
			args = append(args, a == "true")
		} else if u, err := strconv.Unquote(a); err == nil {
			args = append(args, u)
		} else {
			args = append(args, a)
		}
	}
	return name, args, nil
}

func version() (version string) {
	version = "devel"
	if info, ok := debug.ReadBuildInfo(); ok {
		switch info.Main.Version {
		case "":
		case "(devel)":
		default:
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				version += " " + setting.Value
			}
		}
	}
	return
}
