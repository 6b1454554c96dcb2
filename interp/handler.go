package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/syntax"
	"github.com/corrosive-labs/vsh/vfs"
)

// HandlerCtx returns HandlerContext value stored in ctx.
// It panics if ctx has no HandlerContext stored.
func HandlerCtx(ctx context.Context) HandlerContext {
	hc, ok := ctx.Value(handlerCtxKey{}).(HandlerContext)
	if !ok {
		panic("interp.HandlerCtx: no HandlerContext in ctx")
	}
	return hc
}

type handlerCtxKey struct{}

// handlerKind distinguishes which hook a HandlerContext was built for; some
// builtins behave differently depending on whether they were reached via
// the exec path or the call path (see the "command" builtin).
type handlerKind uint8

const (
	handlerKindCall handlerKind = iota
	handlerKindExec
	handlerKindOpen
	handlerKindReadDir
	handlerKindStat
)

// HandlerContext is the data passed to all the handler functions via [context.WithValue].
// It contains some of the current state of the [Runner].
type HandlerContext struct {
	runner *Runner
	kind   handlerKind

	// Pos is the source position of the node that triggered this handler,
	// when known.
	Pos syntax.Pos

	// Env is a read-only version of the interpreter's environment,
	// including environment variables, global variables, and local function
	// variables.
	Env expand.Environ

	// Dir is the interpreter's current directory.
	Dir string

	// FS is the virtual filesystem backing this call; built-ins and exec
	// handlers must route all path access through it rather than touching
	// the host filesystem directly.
	FS vfs.FileSystem

	// Stdin is the interpreter's current standard input reader.
	Stdin io.Reader
	// Stdout is the interpreter's current standard output writer.
	Stdout io.Writer
	// Stderr is the interpreter's current standard error writer.
	Stderr io.Writer
}

// CallHandlerFunc is a handler which runs on every [syntax.CallExpr].
// It is called once variable assignments and field expansion have occurred.
// The call's arguments are replaced by what the handler returns,
// and then the call is executed by the Runner as usual.
// At this time, returning an empty slice without an error is not supported.
//
// This handler is similar to [ExecHandlerFunc], but has two major differences:
//
// First, it runs for all simple commands, including function calls and builtins.
//
// Second, it is not expected to execute the simple command, but instead to
// allow running custom code which allows replacing the argument list.
// Shell builtins touch on many internals of the Runner, after all.
//
// Returning a non-nil error will halt the Runner.
type CallHandlerFunc func(ctx context.Context, args []string) ([]string, error)

// ExecHandlerFunc is a handler which executes simple commands.
// It is called for all [syntax.CallExpr] nodes
// where the first argument is neither a declared function nor a builtin.
//
// Returning a nil error means a zero exit status.
// Other exit statuses can be set with [NewExitStatus].
// Any other error will halt the Runner.
type ExecHandlerFunc func(ctx context.Context, args []string) error

// CommandFunc is one entry of a [Runner.Commands] registry: the external
// collaborator that performs the actual work of an unrecognized name, such
// as "ls" or "grep". It receives the resolved [HandlerContext] directly
// rather than pulling it back out of ctx.
type CommandFunc func(ctx context.Context, hc HandlerContext, args []string) error

// CommandNotFoundError describes a name with no entry in [Runner.Commands].
// [DefaultExecHandler] does not return it: for such a name it prints
// "name: command not found" to stderr and returns [NewExitStatus](127).
type CommandNotFoundError struct{ Name string }

func (e CommandNotFoundError) Error() string { return e.Name + ": command not found" }

// NotExecutableError is returned by a [CommandFunc] that cannot be invoked.
// [DefaultExecHandler] then prints "name: not executable" to stderr and
// returns [NewExitStatus](126) in its place.
type NotExecutableError struct{ Name string }

func (e NotExecutableError) Error() string { return e.Name + ": not executable" }

// DefaultExecHandler returns the [ExecHandlerFunc] used by default.
// It dispatches to the [CommandFunc] registered under args[0] in the
// Runner's Commands map. There are no real child processes: every
// "external" command is a Go function running in this same process against
// the sandboxed [vfs.FileSystem]. killTimeout is not used: ctx is checked
// once before the command is called, and after that it is up to well
// behaved CommandFunc implementations to check ctx themselves.
func DefaultExecHandler(killTimeout time.Duration) ExecHandlerFunc {
	_ = killTimeout // kept for API compatibility; see doc comment above
	return func(ctx context.Context, args []string) error {
		hc := HandlerCtx(ctx)
		name := args[0]
		fn, ok := hc.runner.Commands[name]
		if !ok {
			fmt.Fprintf(hc.Stderr, "%s: command not found\n", name)
			return NewExitStatus(127)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, hc, args[1:])
		switch {
		case err == nil:
			return nil
		case isNotExecutable(err):
			fmt.Fprintf(hc.Stderr, "%s: not executable\n", name)
			return NewExitStatus(126)
		default:
			return err
		}
	}
}

func isNotExecutable(err error) bool {
	_, ok := err.(NotExecutableError)
	return ok
}

// LookPath is like [LookPathDir], but resolves against the current
// directory in env.
//
// Deprecated: the sandboxed model has no real PATH to search; use
// [HandlerCtx] and check [Runner.Commands] (exposed on HandlerContext
// indirectly through [DefaultExecHandler]) instead.
func LookPath(env expand.Environ, file string) (string, error) {
	return LookPathDir(".", env, file)
}

// LookPathDir returns file unchanged when it contains no slash, and an error
// when it does. It exists for API parity with earlier revisions that
// resolved real binaries on PATH; in the sandboxed model there is no PATH to
// search. It does not consult cwd, env or [Runner.Commands], so a name with
// no registered command is returned without error as well.
func LookPathDir(cwd string, env expand.Environ, file string) (string, error) {
	if strings.ContainsAny(file, "/") {
		return "", fmt.Errorf("%q: no such command", file)
	}
	return file, nil
}

// OpenHandlerFunc is a handler which opens files.
// It is called for all files that are opened directly by the shell,
// such as in redirects, except for named pipes created by process substitutions.
//
// The path parameter may be relative to the current directory,
// which can be fetched via [HandlerCtx].
//
// Use a return error of type [*fs.PathError] to have the error printed to
// stderr and the exit status set to 1. If the error is of any other type, the
// interpreter will come to a stop.
type OpenHandlerFunc func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error)

// DefaultOpenHandler returns the [OpenHandlerFunc] used by default.
// It opens files against the [vfs.FileSystem] in the [HandlerContext]
// rather than the host filesystem.
func DefaultOpenHandler() OpenHandlerFunc {
	return func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		hc := HandlerCtx(ctx)
		resolved, err := hc.FS.ResolvePath(hc.Dir, path)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: path, Err: err}
		}
		f := &vfsFile{fs: hc.FS, path: resolved}
		switch {
		case flag&os.O_WRONLY != 0 || flag&os.O_RDWR != 0:
			f.writable = true
			f.appendMode = flag&os.O_APPEND != 0
			if flag&os.O_RDWR != 0 {
				if data, err := hc.FS.ReadFile(resolved); err == nil {
					f.readBuf = bytes.NewReader(data)
				}
			}
		default:
			data, err := hc.FS.ReadFile(resolved)
			if err != nil {
				return nil, &fs.PathError{Op: "open", Path: path, Err: err}
			}
			f.readBuf = bytes.NewReader(data)
		}
		if f.writable {
			f.writeBuf = new(bytes.Buffer)
		}
		return f, nil
	}
}

// vfsFile adapts a [vfs.FileSystem] path to an [io.ReadWriteCloser]: reads
// are served from a snapshot taken at open time, writes accumulate in
// memory and are flushed to the filesystem as a single WriteFile on Close —
// matching the "buffer until the command completes" redirection model.
type vfsFile struct {
	fs         vfs.FileSystem
	path       string
	readBuf    *bytes.Reader
	writeBuf   *bytes.Buffer
	writable   bool
	appendMode bool
}

func (f *vfsFile) Read(p []byte) (int, error) {
	if f.readBuf == nil {
		return 0, io.EOF
	}
	return f.readBuf.Read(p)
}

func (f *vfsFile) Write(p []byte) (int, error) {
	if !f.writable {
		return 0, fmt.Errorf("vsh: file not opened for writing")
	}
	return f.writeBuf.Write(p)
}

func (f *vfsFile) Close() error {
	if !f.writable {
		return nil
	}
	return f.fs.WriteFile(f.path, f.writeBuf.Bytes(), vfs.WriteOpts{
		Create:   true,
		Truncate: !f.appendMode,
		Append:   f.appendMode,
	})
}

// ReadDirHandlerFunc2 is a handler which reads directories, used during
// shell globbing.
type ReadDirHandlerFunc2 func(ctx context.Context, path string) ([]fs.DirEntry, error)

// DefaultReadDirHandler2 returns the [ReadDirHandlerFunc2] used by default.
// It lists directories from the [vfs.FileSystem] in the [HandlerContext].
func DefaultReadDirHandler2() ReadDirHandlerFunc2 {
	return func(ctx context.Context, path string) ([]fs.DirEntry, error) {
		hc := HandlerCtx(ctx)
		resolved, err := hc.FS.ResolvePath(hc.Dir, path)
		if err != nil {
			return nil, &fs.PathError{Op: "readdir", Path: path, Err: err}
		}
		entries, err := hc.FS.ReadDir(resolved)
		if err != nil {
			return nil, &fs.PathError{Op: "readdir", Path: path, Err: err}
		}
		out := make([]fs.DirEntry, len(entries))
		for i, e := range entries {
			out[i] = vfsDirEntry{e}
		}
		return out, nil
	}
}

type vfsDirEntry struct{ ent vfs.DirEntry }

func (e vfsDirEntry) Name() string { return e.ent.Name }
func (e vfsDirEntry) IsDir() bool  { return e.ent.IsDir }
func (e vfsDirEntry) Type() fs.FileMode {
	switch {
	case e.ent.IsDir:
		return fs.ModeDir
	case e.ent.IsLink:
		return fs.ModeSymlink
	default:
		return 0
	}
}
func (e vfsDirEntry) Info() (fs.FileInfo, error) {
	return nil, fmt.Errorf("vsh: DirEntry.Info unsupported, use a StatHandlerFunc instead")
}

// StatHandlerFunc is a handler which gets a file's information.
type StatHandlerFunc func(ctx context.Context, name string, followSymlinks bool) (fs.FileInfo, error)

// DefaultStatHandler returns the [StatHandlerFunc] used by default.
// It stats against the [vfs.FileSystem] in the [HandlerContext], using
// Stat or Lstat depending on followSymlinks.
func DefaultStatHandler() StatHandlerFunc {
	return func(ctx context.Context, path string, followSymlinks bool) (fs.FileInfo, error) {
		hc := HandlerCtx(ctx)
		resolved, err := hc.FS.ResolvePath(hc.Dir, path)
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: path, Err: err}
		}
		var info vfs.Info
		if followSymlinks {
			info, err = hc.FS.Stat(resolved)
		} else {
			info, err = hc.FS.Lstat(resolved)
		}
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: path, Err: err}
		}
		return vfsFileInfo{info}, nil
	}
}

type vfsFileInfo struct{ info vfs.Info }

func (i vfsFileInfo) Name() string       { return i.info.Name }
func (i vfsFileInfo) Size() int64        { return i.info.Size }
func (i vfsFileInfo) Mode() fs.FileMode  { return i.info.Mode }
func (i vfsFileInfo) ModTime() time.Time { return i.info.ModTime }
func (i vfsFileInfo) IsDir() bool        { return i.info.IsDir }
func (i vfsFileInfo) Sys() any           { return nil }
