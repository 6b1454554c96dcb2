package interp

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/corrosive-labs/vsh/syntax"
)

func TestRunnerHandlersExec(t *testing.T) {
	t.Parallel()
	p := syntax.NewParser()

	tests := []struct {
		name string
		exec ExecHandlerFunc
		src  string
		want string
	}{
		{
			name: "ExecSubshell",
			exec: func(ctx context.Context, args []string) error {
				return fmt.Errorf("blacklisted: %s", args[0])
			},
			src:  "(malicious)",
			want: "blacklisted: malicious",
		},
		{
			name: "ExecPipe",
			exec: func(ctx context.Context, args []string) error {
				return fmt.Errorf("blacklisted: %s", args[0])
			},
			src:  "malicious | echo foo",
			want: "foo\nblacklisted: malicious",
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			file := parse(t, p, tc.src)
			var cb concBuffer
			r, err := New(StdIO(nil, &cb, &cb), ExecHandler(tc.exec))
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()
			if err := r.Run(ctx, file); err != nil {
				cb.WriteString(err.Error())
			}
			got := cb.String()
			if got != tc.want {
				t.Fatalf("want:\n%s\ngot:\n%s", tc.want, got)
			}
		})
	}
}

func TestRunnerHandlersOpen(t *testing.T) {
	t.Parallel()

	open := func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		if path != "/dev/null" {
			return nil, fmt.Errorf("non-dev: %s", path)
		}
		return DefaultOpenHandler()(ctx, path, flag, perm)
	}

	var cb concBuffer
	r, err := New(StdIO(nil, &cb, &cb), OpenHandler(open))
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "echo foo >/dev/null; echo bar >/tmp/x")
	if err := r.Run(context.Background(), file); err != nil {
		cb.WriteString(err.Error())
	}
	if want := "non-dev: /tmp/x"; cb.String() != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, cb.String())
	}
}

func TestCommandNotFound(t *testing.T) {
	t.Parallel()
	var cb concBuffer
	r, err := New(StdIO(nil, &cb, &cb))
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "missing-program foo")
	err = r.Run(context.Background(), file)
	if _, ok := IsExitStatus(err); !ok {
		t.Fatalf("want an exit status error, got %v", err)
	}
	want := "missing-program: command not found\n"
	if got := cb.String(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestCommandDispatch(t *testing.T) {
	t.Parallel()
	var cb concBuffer
	join := func(ctx context.Context, hc HandlerContext, args []string) error {
		for i, a := range args[1:] {
			if i > 0 {
				fmt.Fprint(hc.Stdout, args[0])
			}
			fmt.Fprint(hc.Stdout, a)
		}
		fmt.Fprintln(hc.Stdout)
		return nil
	}
	r, err := New(
		StdIO(nil, &cb, &cb),
		Commands(map[string]CommandFunc{"join": join}),
	)
	if err != nil {
		t.Fatal(err)
	}
	file := parse(t, nil, "join , a b c")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if want := "a,b,c\n"; cb.String() != want {
		t.Fatalf("want %q, got %q", want, cb.String())
	}
}
