// vsh is a thin CLI host around the sandboxed shell interpreter in
// [interp]: it owns argument parsing and wires the process's real stdio
// into a Runner, but every path a script touches is still resolved through
// the Runner's virtual filesystem rather than the host's.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/corrosive-labs/vsh/fileutil"
	"github.com/corrosive-labs/vsh/interp"
	"github.com/corrosive-labs/vsh/syntax"
)

var command = flag.String("c", "", "command to be executed")

var (
	flagErrExit = flag.Bool("e", false, "exit on error")
	flagNoUnset = flag.Bool("u", false, "error on unset variable expansion")
	flagOption  = flag.String("o", "", "shell option to set, e.g. pipefail")
	flagXTrace  = flag.Bool("x", false, "print commands before executing them")
	flagNoExec  = flag.Bool("n", false, "parse but don't execute")
)

// setFlags turns the boolean flags above into the "-e"-style argument list
// that [interp.Params] expects, mirroring how "set" itself is invoked.
func setFlags() []string {
	var args []string
	if *flagErrExit {
		args = append(args, "-e")
	}
	if *flagNoUnset {
		args = append(args, "-u")
	}
	if *flagOption != "" {
		args = append(args, "-o", *flagOption)
	}
	if *flagXTrace {
		args = append(args, "-x")
	}
	if *flagNoExec {
		args = append(args, "-n")
	}
	return args
}

func main() {
	flag.Parse()
	err := runAll()
	var es interp.ExitStatus
	if errors.As(err, &es) {
		os.Exit(int(es))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAll() error {
	if *flagFormat {
		return runFormat(flag.Args())
	}

	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	r, err := interp.New(
		interp.Interactive(true),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Commands(defaultCommands()),
		interp.Params(setFlags()...),
	)
	if err != nil {
		return err
	}

	if *command != "" {
		return run(ctx, r, strings.NewReader(*command), "")
	}
	if flag.NArg() == 0 {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return runInteractive(ctx, r, os.Stdin, os.Stdout, os.Stderr)
		}
		return run(ctx, r, os.Stdin, "")
	}
	for _, path := range flag.Args() {
		if err := runPath(ctx, r, path); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, r *interp.Runner, reader io.Reader, name string) error {
	prog, err := syntax.NewParser().Parse(reader, name)
	if err != nil {
		return err
	}
	r.Reset()
	return r.Run(ctx, prog)
}

func runPath(ctx context.Context, r *interp.Runner, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return runDir(ctx, r, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return run(ctx, r, f, path)
}

// runDir walks a directory tree and runs every entry fileutil identifies
// as a probable shell script, in the order it's encountered.
func runDir(ctx context.Context, r *interp.Runner, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch fileutil.CouldBeScript2(d) {
		case fileutil.ConfNotScript:
			return nil
		case fileutil.ConfIfShebang:
			bs, err := os.ReadFile(p)
			if err != nil || !fileutil.HasShebang(bs) {
				return nil
			}
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		return run(ctx, r, f, p)
	})
}

// prompts picks plain or colorized prompt strings depending on whether out
// is an interactive terminal; a piped or redirected stdout never sees
// escape codes, which keeps scripted and tested output byte-exact.
func prompts(out io.Writer) (primary, cont string) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "$ ", "> "
	}
	return color.New(color.FgGreen, color.Bold).Sprint("$ "),
		color.New(color.FgYellow).Sprint("> ")
}

func runInteractive(ctx context.Context, r *interp.Runner, stdin io.Reader, stdout, stderr io.Writer) error {
	primaryPrompt, continuePrompt := prompts(stdout)
	parser := syntax.NewParser()
	fmt.Fprint(stdout, primaryPrompt)
	for stmts, err := range parser.InteractiveSeq(stdin) {
		if err != nil {
			return err // stop at the first error
		}
		if parser.Incomplete() {
			fmt.Fprint(stdout, continuePrompt)
			continue
		}
		for _, stmt := range stmts {
			err := r.Run(ctx, stmt)
			if r.Exited() {
				return err
			}
		}
		fmt.Fprint(stdout, primaryPrompt)
	}
	return nil
}
