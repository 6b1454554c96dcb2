package syntax_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/corrosive-labs/vsh/syntax"
)

func Example() {
	r := strings.NewReader("{ foo; bar; }")
	f, err := syntax.NewParser().Parse(r, "")
	if err != nil {
		return
	}
	syntax.Fprint(os.Stdout, f)
	// Output:
	// {
	//	foo
	//	bar
	// }
}

func ExampleWord() {
	r := strings.NewReader("echo foo${bar}'baz'")
	f, err := syntax.NewParser().Parse(r, "")
	if err != nil {
		return
	}

	args := f.Stmts[0].Cmd.(*syntax.CallExpr).Args
	for i, word := range args {
		fmt.Printf("Word number %d:\n", i)
		for _, part := range word.Parts {
			fmt.Printf("%-20T\n", part)
		}
		fmt.Println()
	}

	// Output:
	// Word number 0:
	// *syntax.Lit
	//
	// Word number 1:
	// *syntax.Lit
	// *syntax.ParamExp
	// *syntax.SglQuoted
}

func ExampleCommand() {
	r := strings.NewReader("echo foo; if x; then y; fi; foo | bar")
	f, err := syntax.NewParser().Parse(r, "")
	if err != nil {
		return
	}

	for i, stmt := range f.Stmts {
		fmt.Printf("Cmd %d: %T\n", i, stmt.Cmd)
	}

	// Output:
	// Cmd 0: *syntax.CallExpr
	// Cmd 1: *syntax.IfClause
	// Cmd 2: *syntax.BinaryCmd
}

func ExampleNewParser_options() {
	src := "a=(1 2 3)"

	// bash syntax is accepted by default
	r := strings.NewReader(src)
	f, err := syntax.NewParser().Parse(r, "")
	fmt.Println(err)

	// Posix(true) rejects bash-only constructs like arrays
	r = strings.NewReader(src)
	_, err = syntax.NewParser(syntax.Posix(true)).Parse(r, "")
	fmt.Println(err)

	syntax.Fprint(os.Stdout, f)

	// Output:
	// <nil>
	// 1:3: arrays are a bash feature
	// a=(1 2 3)
}

func ExampleWalk() {
	in := strings.NewReader(`echo $foo "and $bar"`)
	f, err := syntax.NewParser().Parse(in, "")
	if err != nil {
		return
	}
	syntax.Walk(f, func(node syntax.Node) bool {
		switch x := node.(type) {
		case *syntax.ParamExp:
			x.Param.Value = strings.ToUpper(x.Param.Value)
		}
		return true
	})
	syntax.Fprint(os.Stdout, f)
	// Output: echo $FOO "and $BAR"
}

