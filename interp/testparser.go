package interp

import (
	"fmt"

	"github.com/corrosive-labs/vsh/syntax"
)

// testParser turns the already-expanded argument list of the classic
// "test"/"[" builtins into a syntax.TestExpr, following the old test(1)
// grammar rather than the "[[ ]]" one: words are bare strings, there is
// no pattern matching on "=="/"!=", and "-a"/"-o" act as low precedence
// logical connectives instead of shell operators.
//
//	or      := and { "-o" and }
//	and     := not { "-a" not }
//	not     := "!" not | primary
//	primary := "(" or ")" | unaryop word | word binaryop word | word
type testParser struct {
	rem []string
	tok string
	err func(error)
}

func (p *testParser) next() {
	if len(p.rem) == 0 {
		p.tok = ""
		return
	}
	p.tok = p.rem[0]
	p.rem = p.rem[1:]
}

func (p *testParser) errf(format string, a ...interface{}) {
	p.err(fmt.Errorf(format, a...))
}

func litWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

var classicUnaryOps = map[string]syntax.UnTestOperator{
	"-e": syntax.TsExists,
	"-f": syntax.TsRegFile,
	"-d": syntax.TsDirect,
	"-p": syntax.TsNmPipe,
	"-S": syntax.TsSocket,
	"-L": syntax.TsSmbLink,
	"-h": syntax.TsSmbLink,
	"-k": syntax.TsSticky,
	"-g": syntax.TsGIDSet,
	"-u": syntax.TsUIDSet,
	"-s": syntax.TsNoEmpty,
	"-z": syntax.TsEmpStr,
	"-n": syntax.TsNempStr,
}

var classicBinaryOps = map[string]syntax.BinTestOperator{
	"-nt": syntax.TsNewer,
	"-ot": syntax.TsOlder,
	"-eq": syntax.TsEql,
	"-ne": syntax.TsNeq,
	"-le": syntax.TsLeq,
	"-ge": syntax.TsGeq,
	"-lt": syntax.TsLss,
	"-gt": syntax.TsGtr,
	"=":   syntax.TsEqual,
	"==":  syntax.TsEqual,
	"!=":  syntax.TsNequal,
	"<":   syntax.TsBefore,
	">":   syntax.TsAfter,
}

// classicTest parses the expression and reports any leftover argument as
// an error. name is used only to label error messages.
func (p *testParser) classicTest(name string, _ bool) syntax.TestExpr {
	expr := p.testOr(name)
	if p.tok != "" {
		p.errf("%s: extra argument %q", name, p.tok)
	}
	return expr
}

func (p *testParser) testOr(name string) syntax.TestExpr {
	x := p.testAnd(name)
	for p.tok == "-o" {
		p.next()
		y := p.testAnd(name)
		x = &syntax.BinaryTest{Op: syntax.OrTest, X: x, Y: y}
	}
	return x
}

func (p *testParser) testAnd(name string) syntax.TestExpr {
	x := p.testNot(name)
	for p.tok == "-a" {
		p.next()
		y := p.testNot(name)
		x = &syntax.BinaryTest{Op: syntax.AndTest, X: x, Y: y}
	}
	return x
}

func (p *testParser) testNot(name string) syntax.TestExpr {
	if p.tok == "!" {
		p.next()
		return &syntax.UnaryTest{Op: syntax.TsNot, X: p.testNot(name)}
	}
	return p.testPrimary(name)
}

func (p *testParser) testPrimary(name string) syntax.TestExpr {
	switch p.tok {
	case "":
		return litWord("")
	case "(":
		p.next()
		x := p.testOr(name)
		if p.tok != ")" {
			p.errf("%s: missing matching )", name)
			return x
		}
		p.next()
		return &syntax.ParenTest{X: x}
	}
	if op, ok := classicUnaryOps[p.tok]; ok && len(p.rem) > 0 {
		p.next()
		x := litWord(p.tok)
		p.next()
		return &syntax.UnaryTest{Op: op, X: x}
	}
	x := litWord(p.tok)
	p.next()
	if op, ok := classicBinaryOps[p.tok]; ok {
		p.next()
		y := litWord(p.tok)
		p.next()
		return &syntax.BinaryTest{Op: op, X: x, Y: y}
	}
	return x
}
