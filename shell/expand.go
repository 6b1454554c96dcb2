package shell

import (
	"os"
	"strings"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/syntax"
)

// funcWriteEnviron adapts a read-only name-to-value func into a
// [expand.WriteEnviron], so that it can back a [expand.Config]. Sets are
// kept in an overlay map rather than applied back to fn, since these
// convenience functions only need to expand a single string or list of
// words, not run a whole program that might observe its own writes.
type funcWriteEnviron struct {
	fn       func(string) string
	overlay  map[string]expand.Variable
}

func (e *funcWriteEnviron) Get(name string) expand.Variable {
	if vr, ok := e.overlay[name]; ok {
		return vr
	}
	val := e.fn(name)
	if val == "" {
		return expand.Variable{}
	}
	return expand.Variable{Set: true, Kind: expand.String, Str: val}
}

func (e *funcWriteEnviron) Each(do func(name string, vr expand.Variable) bool) {
	for name, vr := range e.overlay {
		if !do(name, vr) {
			return
		}
	}
}

func (e *funcWriteEnviron) Set(name string, vr expand.Variable) error {
	if e.overlay == nil {
		e.overlay = make(map[string]expand.Variable)
	}
	e.overlay[name] = vr
	return nil
}

// Expand performs shell expansion on s, using env to resolve variables.
// The expansion will apply to parameter expansions like $var and
// ${#var}, but also to arithmetic expansions like $((var + 3)), and brace
// expressions like foo{1,2,3}.
//
// If env is nil, the current environment variables are used. Empty variables
// are treated as unset; to support variables which are set but empty, use
// expand.Config directly.
//
// Subshells like $(echo foo) aren't supported to avoid running arbitrary code.
// To support those, use an interpreter with expand.Config.
//
// An error will be reported if the input string had invalid syntax.
func Expand(s string, env func(string) string) (string, error) {
	p := syntax.NewParser()
	word, err := p.Document(strings.NewReader(s))
	if err != nil {
		return "", err
	}
	if env == nil {
		env = os.Getenv
	}
	cfg := &expand.Config{Env: &funcWriteEnviron{fn: env}, Braces: true}
	fields, ferr := expand.Fields(cfg, *word)
	if ferr != nil {
		return "", ferr
	}
	return strings.Join(fields, ""), nil
}

// Fields performs shell expansion on s, using env to resolve variables, and
// returns the separate fields that result from the expansion. It is similar to
// Expand, but word splitting is performed, and the resulting fields are not
// joined.
//
// If env is nil, the current environment variables are used. Empty variables
// are treated as unset; to support variables which are set but empty, use
// expand.Config directly.
//
// An error will be reported if the input string had invalid syntax.
func Fields(s string, env func(string) string) ([]string, error) {
	p := syntax.NewParser()
	var words []syntax.Word
	err := p.Words(strings.NewReader(s), func(w *syntax.Word) bool {
		words = append(words, *w)
		return true
	})
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = os.Getenv
	}
	cfg := &expand.Config{Env: &funcWriteEnviron{fn: env}, Braces: true}
	return expand.Fields(cfg, words...)
}
