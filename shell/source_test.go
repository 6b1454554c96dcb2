package shell

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/interp"
	"github.com/corrosive-labs/vsh/syntax"

	"github.com/kr/pretty"
)

// testCmds provides minimal CommandFunc stand-ins for the handful of
// purePrograms exercised by these tests; a real embedder would wire its
// own implementations, or none at all.
var testCmds = map[string]interp.CommandFunc{
	"sed": func(ctx context.Context, hc interp.HandlerContext, args []string) error {
		if len(args) != 1 || args[0] == "" || args[0][0] != 's' {
			return fmt.Errorf("unimplemented")
		}
		expr := args[0]
		sep := expr[1]
		expr = expr[2:]
		from := expr[:strings.IndexByte(expr, sep)]
		expr = expr[len(from)+1:]
		to := expr[:strings.IndexByte(expr, sep)]
		bs, err := ioutil.ReadAll(hc.Stdin)
		if err != nil {
			return err
		}
		bs = regexp.MustCompile(from).ReplaceAllLiteral(bs, []byte(to))
		_, err = hc.Stdout.Write(bs)
		return err
	},
	"cat": func(ctx context.Context, hc interp.HandlerContext, args []string) error {
		if hc.Stdin == nil {
			<-ctx.Done()
			return ctx.Err()
		}
		done := make(chan error, 1)
		go func() {
			_, err := io.Copy(hc.Stdout, hc.Stdin)
			done <- err
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		}
	},
}

var mapTests = []struct {
	in   string
	want map[string]expand.Variable
}{
	{
		"a=x; b=y",
		map[string]expand.Variable{
			"a": {Kind: expand.String, Str: "x"},
			"b": {Kind: expand.String, Str: "y"},
		},
	},
	{
		"a=x; a=y; X=(a b c)",
		map[string]expand.Variable{
			"a": {Kind: expand.String, Str: "y"},
			"X": {Kind: expand.Indexed, List: []string{"a", "b", "c"}},
		},
	},
	{
		"a=$(echo foo | sed 's/o/a/g')",
		map[string]expand.Variable{
			"a": {Kind: expand.String, Str: "faa"},
		},
	},
}

var errTests = []struct {
	in   string
	want string
}{
	{
		"a=b; exit 1",
		"exit status 1",
	},
}

func TestSourceNode(t *testing.T) {
	for i := range mapTests {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			tc := mapTests[i]
			t.Parallel()
			p := syntax.NewParser()
			file, err := p.Parse(strings.NewReader(tc.in), "")
			if err != nil {
				t.Fatal(err)
			}
			got, err := SourceNode(context.Background(), file, testCmds)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(tc.want, got) {
				t.Fatal(strings.Join(pretty.Diff(tc.want, got), "\n"))
			}
		})
	}
}

func TestSourceNodeErr(t *testing.T) {
	for i := range errTests {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			tc := errTests[i]
			t.Parallel()
			p := syntax.NewParser()
			file, err := p.Parse(strings.NewReader(tc.in), "")
			if err != nil {
				t.Fatal(err)
			}
			_, err = SourceNode(context.Background(), file, testCmds)
			if err == nil {
				t.Fatal("wanted non-nil error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not match %q", err, tc.want)
			}
		})
	}
}

func TestSourceNodeForbidsUnlisted(t *testing.T) {
	t.Parallel()
	p := syntax.NewParser()
	file, err := p.Parse(strings.NewReader("rm -rf /"), "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = SourceNode(context.Background(), file, map[string]interp.CommandFunc{
		"rm": func(ctx context.Context, hc interp.HandlerContext, args []string) error {
			t.Fatal("rm must never run when sourcing")
			return nil
		},
	})
	if err == nil {
		t.Fatal("wanted an error: rm is not in purePrograms")
	}
}

func TestSourceFileContext(t *testing.T) {
	t.Parallel()
	tf, err := ioutil.TempFile("", "sh-shell")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tf.Name())
	const src = "cat" // block forever
	if _, err := tf.WriteString(src); err != nil {
		t.Fatal(err)
	}
	if err := tf.Close(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		f, err := os.Open(tf.Name())
		if err != nil {
			errc <- err
			return
		}
		defer f.Close()
		p := syntax.NewParser()
		file, err := p.Parse(f, tf.Name())
		if err != nil {
			errc <- err
			return
		}
		_, err = SourceNode(ctx, file, testCmds)
		errc <- err
	}()
	cancel()
	err = <-errc
	want := "context canceled"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not match %q", err, want)
	}
}
