package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/syntax"
	"github.com/corrosive-labs/vsh/vfs"
)

func parse(tb testing.TB, parser *syntax.Parser, src string) *syntax.File {
	if parser == nil {
		parser = syntax.NewParser()
	}
	file, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		tb.Fatal(err)
	}
	return file
}

// concBuffer wraps a bytes.Buffer in a mutex so that concurrent writes
// to it don't upset the race detector.
type concBuffer struct {
	buf bytes.Buffer
	sync.Mutex
}

func (b *concBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.Write(p)
}

func (b *concBuffer) WriteString(s string) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.WriteString(s)
}

func (b *concBuffer) String() string {
	b.Lock()
	defer b.Unlock()
	return b.buf.String()
}

func (b *concBuffer) Reset() {
	b.Lock()
	defer b.Unlock()
	b.buf.Reset()
}

// testCat stands in for an external "cat" command: it copies stdin to
// stdout, or the named files from the runner's filesystem when given any.
func testCat(ctx context.Context, hc HandlerContext, args []string) error {
	if len(args) == 0 {
		_, err := io.Copy(hc.Stdout, hc.Stdin)
		return err
	}
	for _, name := range args {
		path, err := hc.FS.ResolvePath(hc.Dir, name)
		if err != nil {
			return err
		}
		data, err := hc.FS.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := hc.Stdout.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func BenchmarkRun(b *testing.B) {
	b.ReportAllocs()
	b.StopTimer()
	src := `
echo a b c d
echo ./$foo/etc $(echo foo bar)
foo="bar"
x=y :
fn() {
	local a=b
	for i in 1 2 3; do
		echo $i | cat
	done
}
[[ $foo == bar ]] && fn
echo a{b,c}d *.go
let i=(2 + 3)
`
	file := parse(b, nil, src)
	r, _ := New()
	ctx := context.Background()
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		r.Reset()
		if err := r.Run(ctx, file); err != nil {
			b.Fatal(err)
		}
	}
}

// runTests exercises core interpreter semantics that don't depend on a
// real filesystem or real external programs: expansion, arithmetic,
// control flow, and built-ins. Each is run against a fresh MemFS-backed
// Runner.
var runTests = []struct {
	in, want string
}{
	// basics
	{"echo foo", "foo\n"},
	{"echo a b c", "a b c\n"},
	{"printf foo", "foo"},
	{"printf '%s-%s\\n' a b", "a-b\n"},

	// variables and expansion
	{"foo=bar; echo $foo", "bar\n"},
	{"foo=bar; echo ${foo}", "bar\n"},
	{"foo=bar; echo ${foo:-baz}", "bar\n"},
	{"echo ${foo:-baz}", "baz\n"},
	{"foo=bar; echo ${foo:+set}", "set\n"},
	{"foo=bar; echo ${#foo}", "3\n"},
	{"foo=barbaz; echo ${foo#bar}", "baz\n"},
	{"foo=barbaz; echo ${foo%baz}", "bar\n"},
	{"foo=BAR; echo ${foo,,}", "bar\n"},
	{"foo=bar; echo ${foo^^}", "BAR\n"},
	{"a=1 b=2; echo $((a + b))", "3\n"},
	{"echo $((2 ** 10))", "1024\n"},
	{"echo $((7 % 3))", "1\n"},

	// arrays
	{"a=(1 2 3); echo ${a[1]}", "2\n"},
	{"a=(1 2 3); echo ${#a[@]}", "3\n"},
	{"a=(1 2 3); echo ${a[@]}", "1 2 3\n"},

	// brace expansion
	{"echo a{b,c}d", "abd acd\n"},
	{"echo {1..3}", "1 2 3\n"},

	// control flow
	{"for i in 1 2 3; do echo $i; done", "1\n2\n3\n"},
	{"i=0; while [ $i -lt 3 ]; do echo $i; i=$((i+1)); done", "0\n1\n2\n"},
	{"if true; then echo yes; else echo no; fi", "yes\n"},
	{"if false; then echo yes; else echo no; fi", "no\n"},
	{"case foo in foo) echo match;; *) echo nomatch;; esac", "match\n"},

	// functions
	{"f() { echo called; }; f", "called\n"},
	{"f() { echo $1; }; f hi", "hi\n"},

	// pipelines and command substitution
	{"echo hi | cat", "hi\n"},
	{"echo $(echo nested)", "nested\n"},

	// exit status
	{"true; echo $?", "0\n"},
	{"false; echo $?", "1\n"},

	// set -e / set -u
	{"set -u; echo $undefined", "vsh: undefined: unbound variable\nexit status 1 #IGNORE"},
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()
	p := syntax.NewParser()
	for i, c := range runTests {
		c := c
		t.Run(fmt.Sprintf("%03d", i), func(t *testing.T) {
			t.Parallel()
			file := parse(t, p, c.in)
			var cb concBuffer
			r, err := New(StdIO(nil, &cb, &cb), FS(vfs.NewMemFS()),
				Commands(map[string]CommandFunc{"cat": testCat}))
			if err != nil {
				t.Fatal(err)
			}
			if err := r.Run(context.Background(), file); err != nil {
				cb.WriteString(err.Error() + "\n")
			}
			want := c.want
			if i := strings.Index(want, " #"); i >= 0 {
				want = want[:i]
			}
			if got := cb.String(); got != want {
				t.Fatalf("wrong output in %q:\nwant: %q\ngot:  %q", c.in, want, got)
			}
		})
	}
}

func TestRunnerRedirection(t *testing.T) {
	t.Parallel()
	var cb concBuffer
	fs := vfs.NewMemFS()
	r, err := New(StdIO(nil, &cb, &cb), FS(fs),
		Commands(map[string]CommandFunc{"cat": testCat}))
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "echo hello >/out.txt; cat /out.txt")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if want := "hello\n"; cb.String() != want {
		t.Fatalf("want %q, got %q", want, cb.String())
	}
	data, err := fs.ReadFile("/out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("file content mismatch: %q", data)
	}
}

func TestRunnerOpts(t *testing.T) {
	t.Parallel()
	withEnv := func(strs ...string) func(*Runner) error {
		return Env(expand.ListEnviron(strs...))
	}
	tests := []struct {
		opt  func(*Runner) error
		in   string
		want string
	}{
		{withEnv("FOO=bar"), "echo $FOO", "bar\n"},
		{withEnv(), "echo $FOO", "\n"},
		{Dir("/work"), "pwd", "/work\n"},
		{Params("a", "b"), "echo $1 $2", "a b\n"},
	}
	for i, tc := range tests {
		t.Run(fmt.Sprintf("%03d", i), func(t *testing.T) {
			file := parse(t, nil, tc.in)
			var cb concBuffer
			fs := vfs.NewMemFS()
			if err := fs.Mkdir("/work", vfs.MkdirOpts{}); err != nil {
				t.Fatal(err)
			}
			r, err := New(StdIO(nil, &cb, &cb), FS(fs), tc.opt,
				Commands(map[string]CommandFunc{
					"pwd": func(ctx context.Context, hc HandlerContext, args []string) error {
						fmt.Fprintln(hc.Stdout, hc.Dir)
						return nil
					},
				}),
			)
			if err != nil {
				t.Fatal(err)
			}
			if err := r.Run(context.Background(), file); err != nil {
				cb.WriteString(err.Error())
			}
			if got := cb.String(); got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRunnerContext(t *testing.T) {
	t.Parallel()
	file := parse(t, nil, "while true; do true; done")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	err = r.Run(ctx, file)
	if err != context.Canceled {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !r.Exited() {
		t.Fatal("runner did not exit")
	}
}

func TestRunnerDir(t *testing.T) {
	t.Parallel()
	fs := vfs.NewMemFS()
	if err := fs.Mkdir("/tmp/sub", vfs.MkdirOpts{Recursive: true}); err != nil {
		t.Fatal(err)
	}
	_, err := New(FS(fs), Dir("/does/not/exist"))
	if err == nil {
		t.Fatal("want error for nonexistent dir")
	}
	r, err := New(FS(fs), Dir("/tmp/sub"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Dir != "/tmp/sub" {
		t.Fatalf("want /tmp/sub, got %s", r.Dir)
	}
}

func TestRunnerResetFields(t *testing.T) {
	t.Parallel()
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "foo=bar")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if r.Vars["foo"].Str != "bar" {
		t.Fatal("var was not set")
	}
	r.Reset()
	if _, ok := r.Vars["foo"]; ok {
		t.Fatal("var survived Reset")
	}
}

func TestRunnerManyResets(t *testing.T) {
	t.Parallel()
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		r.Reset()
	}
}

func TestRunnerEnvNoModify(t *testing.T) {
	t.Parallel()
	env := expand.ListEnviron("FOO=bar")
	r, err := New(Env(env))
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "FOO=baz")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if got := env.Get("FOO").String(); got != "bar" {
		t.Fatalf("original environ was modified: %q", got)
	}
}
