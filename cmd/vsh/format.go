package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	maybeio "github.com/google/renameio/v2/maybe"
	"github.com/pkg/diff"

	"github.com/corrosive-labs/vsh/syntax"
)

var (
	flagFormat = flag.Bool("f", false, "format the given scripts instead of running them")
	flagWrite  = flag.Bool("w", false, "write the formatted result back to the file, used with -f")
	flagDiff   = flag.Bool("d", false, "print a diff instead of the formatted result, used with -f")
)

// runFormat implements vsh's shfmt-style "-f" mode: parse each path, print
// it back out with the canonical printer, and either show the result,
// diff it against the original, or rewrite the file atomically.
func runFormat(paths []string) error {
	if len(paths) == 0 {
		return formatOne("<stdin>", os.Stdin, os.Stdout)
	}
	changed := false
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		src, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		res, err := formatSource(path, src)
		if err != nil {
			return err
		}
		if bytes.Equal(src, res) {
			continue
		}
		changed = true
		switch {
		case *flagWrite:
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			if err := maybeio.WriteFile(path, res, info.Mode().Perm()); err != nil {
				return err
			}
		case *flagDiff:
			if err := diff.Text(path+".orig", path, bytes.NewReader(src), bytes.NewReader(res), os.Stdout); err != nil {
				return err
			}
		default:
			os.Stdout.Write(res)
		}
	}
	if changed && *flagDiff {
		return fmt.Errorf("one or more files were not formatted")
	}
	return nil
}

func formatOne(name string, in *os.File, out *os.File) error {
	src, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	res, err := formatSource(name, src)
	if err != nil {
		return err
	}
	_, err = out.Write(res)
	return err
}

func formatSource(name string, src []byte) ([]byte, error) {
	p := syntax.NewParser(syntax.KeepComments(true))
	prog, err := p.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := syntax.Fprint(&buf, prog); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
