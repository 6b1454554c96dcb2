package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/corrosive-labs/vsh/interp"
)

// defaultCommands is a minimal registry of external collaborators (see the
// CommandFunc contract in package interp): small, host-independent
// implementations of a handful of coreutils-style names, so that the vsh
// binary is useful out of the box without linking in a full userland. A
// production embedder is expected to supply its own, richer registry (rg,
// sed, awk, grep, find, jq, ...) built against the same [vfs.FileSystem]
// the Runner is configured with.
func defaultCommands() map[string]interp.CommandFunc {
	return map[string]interp.CommandFunc{
		"true":  func(ctx context.Context, hc interp.HandlerContext, args []string) error { return nil },
		"false": func(ctx context.Context, hc interp.HandlerContext, args []string) error { return interp.NewExitStatus(1) },
		"echo":  cmdEcho,
		"pwd":   cmdPwd,
		"cat":   cmdCat,
	}
}

func cmdEcho(ctx context.Context, hc interp.HandlerContext, args []string) error {
	nl := true
	if len(args) > 0 && args[0] == "-n" {
		nl = false
		args = args[1:]
	}
	fmt.Fprint(hc.Stdout, strings.Join(args, " "))
	if nl {
		fmt.Fprintln(hc.Stdout)
	}
	return nil
}

func cmdPwd(ctx context.Context, hc interp.HandlerContext, args []string) error {
	fmt.Fprintln(hc.Stdout, hc.Dir)
	return nil
}

func cmdCat(ctx context.Context, hc interp.HandlerContext, args []string) error {
	if len(args) == 0 {
		_, err := io.Copy(hc.Stdout, hc.Stdin)
		return err
	}
	for _, name := range args {
		path, err := hc.FS.ResolvePath(hc.Dir, name)
		if err != nil {
			fmt.Fprintf(hc.Stderr, "cat: %s: %v\n", name, err)
			continue
		}
		data, err := hc.FS.ReadFile(path)
		if err != nil {
			fmt.Fprintf(hc.Stderr, "cat: %s: %v\n", name, err)
			continue
		}
		hc.Stdout.Write(data)
	}
	return nil
}
