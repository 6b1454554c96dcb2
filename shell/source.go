package shell

import (
	"context"
	"fmt"
	"os"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/interp"
	"github.com/corrosive-labs/vsh/syntax"
)

// SourceFile sources a shell file from disk and returns the variables
// declared in it. It is a convenience function that uses a default shell
// parser, parses a file from disk, and calls SourceNode.
//
// Reading the script itself is the one real filesystem access this
// package performs; everything the script does once parsed runs against
// an in-memory, sandboxed filesystem, since sourcing a file to read its
// variables must never let the file mutate the caller's disk.
func SourceFile(ctx context.Context, path string) (map[string]expand.Variable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open: %v", err)
	}
	defer f.Close()
	p := syntax.NewParser()
	file, err := p.Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("could not parse: %v", err)
	}
	return SourceNode(ctx, file, nil)
}

// purePrograms holds a list of common programs that do not have side
// effects, or otherwise cannot modify or harm the system that runs
// them. Only these names are reachable through [interp.Runner.Commands]
// when sourcing; anything else is refused before it can run.
var purePrograms = []string{
	// string handling
	"sed", "grep", "tr", "cut", "cat", "head", "tail", "seq", "yes",
	"wc",
	// paths
	"pwd", "basename", "realpath",
	// others
	"env", "sleep", "uniq", "sort",
}

func pureRunner(cmds map[string]interp.CommandFunc) *interp.Runner {
	whitelist := make(map[string]interp.CommandFunc, len(purePrograms))
	for _, name := range purePrograms {
		if fn, ok := cmds[name]; ok {
			whitelist[name] = fn
		}
	}
	r, err := interp.New(interp.Commands(whitelist))
	if err != nil {
		panic(err)
	}
	return r
}

// SourceNode sources a shell program from a node and returns the
// variables declared in it. It accepts the same set of node types that
// [interp.Runner.Run] does.
//
// The program runs against a fresh in-memory filesystem and a whitelist
// of side-effect-free commands, so it cannot affect the caller's real
// files or run arbitrary external programs; only assembling the final
// variable set matters.
func SourceNode(ctx context.Context, node syntax.Node, cmds map[string]interp.CommandFunc) (map[string]expand.Variable, error) {
	r := pureRunner(cmds)
	if err := r.Run(ctx, node); err != nil {
		return nil, fmt.Errorf("could not run: %v", err)
	}
	// delete the internal shell vars that the user is not
	// interested in
	delete(r.Vars, "PWD")
	delete(r.Vars, "HOME")
	delete(r.Vars, "PATH")
	delete(r.Vars, "IFS")
	delete(r.Vars, "OPTIND")
	return r.Vars, nil
}
