package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"tilc/internal/config"
	"tilc/internal/diag"
	"tilc/internal/loader"
	"tilc/internal/watch"
)

func usage() {
	fmt.Fprintln(os.Stderr, "tilc - TIL to C compiler")
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  tilc check <file.til>")
	fmt.Fprintln(os.Stderr, "  tilc c <file.til>")
	fmt.Fprintln(os.Stderr, "  tilc build [-o dir] <file.til>")
	fmt.Fprintln(os.Stderr, "  tilc run [-o dir] <file.til> [-- args]")
	fmt.Fprintln(os.Stderr, "  tilc watch [-o dir] <file.til>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "flags:")
	fmt.Fprintln(os.Stderr, "  -o dir, --out=dir   output directory (default: $TILC_OUT or target)")
	fmt.Fprintln(os.Stderr, "  --cc=path           C compiler (default: $TILC_CC or cc)")
	fmt.Fprintln(os.Stderr, "  -v, --verbose       print compiler invocations")
}

type options struct {
	file     string
	out      string
	cc       string
	verbose  bool
	progArgs []string
}

func parseArgs(args []string) (opts options, err error) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			opts.progArgs = append([]string{}, args[i+1:]...)
			i = len(args)
		case a == "-v" || a == "--verbose":
			opts.verbose = true
		case a == "-o" || a == "--out":
			if i+1 >= len(args) {
				return options{}, fmt.Errorf("missing value for %s", a)
			}
			i++
			opts.out = args[i]
		case strings.HasPrefix(a, "--out="):
			opts.out = strings.TrimPrefix(a, "--out=")
		case strings.HasPrefix(a, "--cc="):
			opts.cc = strings.TrimPrefix(a, "--cc=")
		case strings.HasPrefix(a, "-"):
			return options{}, fmt.Errorf("unknown flag: %s", a)
		case opts.file != "":
			return options{}, fmt.Errorf("unexpected extra arg: %s", a)
		default:
			opts.file = a
		}
	}
	if opts.file == "" {
		return options{}, fmt.Errorf("missing source file")
	}
	return opts, nil
}

// driver runs one command. Diagnostics go to stderr.
type driver struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer

	dir  string // directory of the root file
	root string // root file relative to dir
	l    *loader.Loader
}

func newDriver(opts options, cfg config.Config, stdout, stderr io.Writer) (*driver, error) {
	if opts.cc != "" {
		cfg.CC = opts.cc
	}
	if opts.out != "" {
		cfg.OutDir = opts.out
	}
	cfg.Verbose = cfg.Verbose || opts.verbose
	abs, err := filepath.Abs(opts.file)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	dir, root := filepath.Split(abs)
	return &driver{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		dir:    dir,
		root:   root,
		l:      loader.New(os.DirFS(dir)),
	}, nil
}

func (d *driver) outDir() string {
	if filepath.IsAbs(d.cfg.OutDir) {
		return d.cfg.OutDir
	}
	return filepath.Join(d.dir, d.cfg.OutDir)
}

func (d *driver) failed(diags *diag.Bag) error {
	diag.Print(d.stderr, diags)
	return fmt.Errorf("%s: %d error(s)", d.root, len(diags.Items))
}

func (d *driver) check() error {
	_, diags, err := d.l.Check(d.root)
	if err != nil {
		return err
	}
	if diags.HasErrors() {
		return d.failed(diags)
	}
	return nil
}

func (d *driver) emitC() error {
	res, diags, err := d.l.Build(d.root)
	if err != nil {
		return err
	}
	if diags.HasErrors() {
		return d.failed(diags)
	}
	_, err = io.WriteString(d.stdout, res.C)
	return err
}

func (d *driver) build(ctx context.Context) (string, error) {
	res, diags, err := d.l.Build(d.root)
	if err != nil {
		return "", err
	}
	if diags.HasErrors() {
		return "", d.failed(diags)
	}
	art, err := loader.Compile(ctx, res, d.outDir(), d.cfg)
	if err != nil {
		return "", err
	}
	if d.cfg.Verbose {
		fmt.Fprintf(d.stderr, "built %s\n", art.Binary)
	}
	return art.Binary, nil
}

func (d *driver) run(ctx context.Context, progArgs []string) error {
	bin, err := d.build(ctx)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, progArgs...)
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// watchLoop builds once, then rebuilds whenever a file the last build
// read changes, until ctx is done.
func (d *driver) watchLoop(ctx context.Context) error {
	changed := make(chan string, 1)
	w, err := watch.New(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	rebuild := func() {
		if _, err := d.build(ctx); err != nil {
			fmt.Fprintln(d.stderr, err.Error())
		} else {
			fmt.Fprintf(d.stderr, "%s: ok\n", d.root)
		}
		for _, p := range d.l.Files() {
			if err := w.Add(filepath.Join(d.dir, filepath.FromSlash(p))); err != nil {
				fmt.Fprintln(d.stderr, err.Error())
			}
		}
	}
	rebuild()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	for {
		select {
		case <-ctx.Done():
			return <-done
		case err := <-done:
			return err
		case p := <-changed:
			if d.cfg.Verbose {
				fmt.Fprintf(d.stderr, "changed: %s\n", p)
			}
			d.l.Invalidate()
			rebuild()
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		usage()
		return
	case "check", "c", "build", "run", "watch":
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	opts, err := parseArgs(os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	d, err := newDriver(opts, config.Load(), os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "check":
		err = d.check()
	case "c":
		err = d.emitC()
	case "build":
		_, err = d.build(ctx)
	case "run":
		err = d.run(ctx, opts.progArgs)
		if ee, ok := err.(*exec.ExitError); ok {
			stop()
			os.Exit(ee.ExitCode())
		}
	case "watch":
		err = d.watchLoop(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}
