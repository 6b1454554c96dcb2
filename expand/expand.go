// Package expand handles shell word expansions, such as parameter
// expansion, command substitution, and globbing.
package expand

import (
	"fmt"
	"io"
	"io/fs"
	"os/user"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/corrosive-labs/vsh/syntax"
)

// Config specifies the parameters for word expansion, such as the
// environment to work on, glob options, and the command and process
// substitution callbacks. A zero Config is never valid; at the very least,
// Env must be set.
type Config struct {
	// Env is used to get and set the shell's variables. It is required
	// for any expansion involving a parameter.
	Env WriteEnviron

	// CmdSubst implements command substitution, such as "$(foo)". The
	// writer given to the callback should receive the substitution's
	// standard output.
	CmdSubst func(io.Writer, *syntax.CmdSubst) error

	// ProcSubst implements process substitution, such as "<(foo)". It is
	// handed the process substitution node directly, and should return a
	// string, such as a path, that can act as a substitute.
	ProcSubst func(*syntax.ProcSubst) (string, error)

	// ReadDir2 lists directory entries for globbing purposes. Globbing is
	// entirely disabled when it is nil, which is how the "noglob" shell
	// option is implemented.
	ReadDir2 func(path string) ([]fs.DirEntry, error)

	// NoUnset makes parameter expansion error out when a variable isn't set.
	NoUnset bool
	// NullGlob makes a glob pattern with no matches expand to zero fields,
	// rather than to the pattern itself.
	NullGlob bool
	// NoCaseGlob makes globbing case-insensitive.
	NoCaseGlob bool
	// GlobStar makes "**" recurse into subdirectories when globbing.
	GlobStar bool
	// Braces enables brace expansion, such as "{foo,bar}" or "{1..5}",
	// as a word pre-processing step ahead of the rest of Fields.
	Braces bool

	ifs         string
	curParam    *syntax.ParamExp
	bufferAlloc strings.Builder
	fieldAlloc  [4]fieldPart
	fieldsAlloc [4][]fieldPart
}

// expandErr is used as a panic value so that deeply recursive expansion
// helpers don't need to thread an error return through every call.
type expandErr struct{ err error }

func (cfg *Config) err(err error) {
	panic(expandErr{err})
}

func (cfg *Config) errf(format string, args ...any) {
	cfg.err(fmt.Errorf(format, args...))
}

func recoverErr(errp *error) {
	switch r := recover().(type) {
	case nil:
	case expandErr:
		*errp = r.err
	default:
		panic(r)
	}
}

func (cfg *Config) ifsUpdated() {
	cfg.ifs = " \t\n"
	if vr := cfg.Env.Get("IFS"); vr.IsSet() {
		cfg.ifs = vr.String()
	}
}

func (cfg *Config) ifsRune(r rune) bool {
	for _, r2 := range cfg.ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

func (cfg *Config) ifsJoin(strs []string) string {
	sep := ""
	if len(cfg.ifs) > 0 {
		sep = cfg.ifs[:1]
	}
	return strings.Join(strs, sep)
}

func (cfg *Config) strBuilder() *strings.Builder {
	cfg.bufferAlloc.Reset()
	return &cfg.bufferAlloc
}

// envGet resolves name through any nameref chain and returns its string
// value, erroring out if NoUnset is set and the variable is unset.
func (cfg *Config) envGet(name string) string {
	vr := cfg.Env.Get(name)
	if cfg.NoUnset && !vr.IsSet() {
		cfg.errf("%s: unbound variable", name)
	}
	_, vr = vr.Resolve(cfg.Env)
	return vr.String()
}

func (cfg *Config) envSet(name, value string) error {
	return cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: value})
}

// Literal expands a word to a single string. Quotes are kept as part of the
// parsing process, but no splitting, brace expansion, or globbing happens.
func Literal(cfg *Config, word syntax.Word) (str string, err error) {
	defer recoverErr(&err)
	if word.Parts == nil {
		return "", nil
	}
	cfg.ifsUpdated()
	field := cfg.wordField(word.Parts, quoteDouble)
	return cfg.fieldJoin(field), nil
}

// Document expands a word as the body of a here-document; similar to double
// quoting, except that only a few characters may be escaped with a
// backslash.
func Document(cfg *Config, word syntax.Word) (str string, err error) {
	defer recoverErr(&err)
	if word.Parts == nil {
		return "", nil
	}
	cfg.ifsUpdated()
	field := cfg.wordField(word.Parts, quoteDouble)
	return cfg.fieldJoin(field), nil
}

// Pattern expands a word as a pattern, meaning that quoted runes are
// escaped so that a later glob match treats them literally.
func Pattern(cfg *Config, word syntax.Word) (str string, err error) {
	defer recoverErr(&err)
	if word.Parts == nil {
		return "", nil
	}
	cfg.ifsUpdated()
	field := cfg.wordField(word.Parts, quoteSingle)
	buf := cfg.strBuilder()
	for _, part := range field {
		if part.quote > quoteNone {
			buf.WriteString(quoteMeta(part.val))
		} else {
			buf.WriteString(part.val)
		}
	}
	return buf.String(), nil
}

// Fields expands a number of words as if they were the arguments to a
// command: brace expansion (when cfg.Braces is set), quote removal, field
// splitting, and globbing all take place.
func Fields(cfg *Config, words ...syntax.Word) (fields []string, err error) {
	defer recoverErr(&err)
	cfg.ifsUpdated()
	dir := cfg.envGet("PWD")
	for _, word := range words {
		braceWords := []*syntax.Word{&word}
		if cfg.Braces {
			braceWords = Braces(&word)
		}
		for _, bw := range braceWords {
			fields = cfg.expandWordFields(fields, bw, dir)
		}
	}
	return fields, nil
}

func (cfg *Config) expandWordFields(fields []string, word *syntax.Word, dir string) []string {
	for _, field := range cfg.wordFields(word.Parts) {
		path, doGlob := cfg.escapedGlobField(field)
		var matches []string
		if doGlob && cfg.ReadDir2 != nil {
			matches, _ = cfg.glob(dir, path)
		}
		switch {
		case len(matches) > 0:
			fields = append(fields, matches...)
		case doGlob && cfg.NullGlob:
			// no matches; drop the field entirely
		default:
			fields = append(fields, cfg.fieldJoin(field))
		}
	}
	return fields
}

type fieldPart struct {
	val   string
	quote quoteLevel
}

type quoteLevel uint8

const (
	quoteNone quoteLevel = iota
	quoteDouble
	quoteSingle
)

func (cfg *Config) fieldJoin(field []fieldPart) string {
	switch len(field) {
	case 0:
		return ""
	case 1:
		return field[0].val
	}
	buf := cfg.strBuilder()
	for _, part := range field {
		buf.WriteString(part.val)
	}
	return buf.String()
}

// escapedGlobField joins a field into a single string, escaping any runes
// that came from quoted parts so that a later glob treats them literally.
// It reports whether the field still contains unescaped glob metacharacters.
func (cfg *Config) escapedGlobField(field []fieldPart) (escaped string, glob bool) {
	buf := cfg.strBuilder()
	for _, part := range field {
		if part.quote > quoteNone {
			buf.WriteString(quoteMeta(part.val))
			continue
		}
		buf.WriteString(part.val)
		if hasGlob(part.val) {
			glob = true
		}
	}
	if glob {
		escaped = buf.String()
	}
	return escaped, glob
}

func (cfg *Config) wordField(wps []syntax.WordPart, ql quoteLevel) []fieldPart {
	var field []fieldPart
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = cfg.expandUser(s)
			}
			if ql == quoteDouble && strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' && i+1 < len(s) {
						switch s[i+1] {
						case '\n':
							i++
							continue
						case '"', '\\', '$', '`':
							continue
						}
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			field = append(field, fieldPart{val: s})
		case *syntax.SglQuoted:
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = Format(cfg, fp.val, nil)
			}
			field = append(field, fp)
		case *syntax.DblQuoted:
			for _, part := range cfg.wordField(x.Parts, quoteDouble) {
				part.quote = quoteDouble
				field = append(field, part)
			}
			if len(x.Parts) == 0 {
				field = append(field, fieldPart{quote: quoteDouble})
			}
		case *syntax.ParamExp:
			field = append(field, fieldPart{val: cfg.paramExp(x)})
		case *syntax.CmdSubst:
			field = append(field, fieldPart{val: cfg.cmdSubst(x)})
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				cfg.err(err)
			}
			field = append(field, fieldPart{val: strconv.Itoa(n)})
		case *syntax.ProcSubst:
			if cfg.ProcSubst == nil {
				cfg.errf("process substitution is not supported")
			}
			str, err := cfg.ProcSubst(x)
			if err != nil {
				cfg.err(err)
			}
			field = append(field, fieldPart{val: str})
		default:
			cfg.errf("unhandled word part: %T", wp)
		}
	}
	return field
}

func (cfg *Config) cmdSubst(cs *syntax.CmdSubst) string {
	if cfg.CmdSubst == nil {
		cfg.errf("command substitution is not supported")
	}
	buf := cfg.strBuilder()
	if err := cfg.CmdSubst(&writerFunc{buf}, cs); err != nil {
		cfg.err(err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// writerFunc adapts a *strings.Builder to io.Writer without exposing it
// further than necessary.
type writerFunc struct{ b *strings.Builder }

func (w *writerFunc) Write(p []byte) (int, error) { return w.b.Write(p) }

// wordFields splits a word's parts into one or more fields, honoring IFS
// and the quoting rules that protect a part from being split.
func (cfg *Config) wordFields(wps []syntax.WordPart) [][]fieldPart {
	fields := cfg.fieldsAlloc[:0]
	curField := cfg.fieldAlloc[:0]
	allowEmpty := false
	flush := func() {
		if len(curField) == 0 {
			return
		}
		fields = append(fields, curField)
		curField = nil
	}
	splitAdd := func(val string) {
		for i, piece := range strings.FieldsFunc(val, cfg.ifsRune) {
			if i > 0 {
				flush()
			}
			curField = append(curField, fieldPart{val: piece})
		}
	}
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = cfg.expandUser(s)
			}
			if strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' && i+1 < len(s) {
						i++
						b = s[i]
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			curField = append(curField, fieldPart{val: s})
		case *syntax.SglQuoted:
			allowEmpty = true
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = Format(cfg, fp.val, nil)
			}
			curField = append(curField, fp)
		case *syntax.DblQuoted:
			allowEmpty = true
			if len(x.Parts) == 1 {
				if pe, _ := x.Parts[0].(*syntax.ParamExp); quotedElems(pe) {
					for i, elem := range cfg.indexElems(pe) {
						if i > 0 {
							flush()
						}
						curField = append(curField, fieldPart{quote: quoteDouble, val: elem})
					}
					continue
				}
			}
			for _, part := range cfg.wordField(x.Parts, quoteDouble) {
				part.quote = quoteDouble
				curField = append(curField, part)
			}
		case *syntax.ParamExp:
			splitAdd(cfg.paramExp(x))
		case *syntax.CmdSubst:
			splitAdd(cfg.cmdSubst(x))
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				cfg.err(err)
			}
			curField = append(curField, fieldPart{val: strconv.Itoa(n)})
		case *syntax.ProcSubst:
			if cfg.ProcSubst == nil {
				cfg.errf("process substitution is not supported")
			}
			str, err := cfg.ProcSubst(x)
			if err != nil {
				cfg.err(err)
			}
			curField = append(curField, fieldPart{val: str})
		default:
			cfg.errf("unhandled word part: %T", wp)
		}
	}
	flush()
	if allowEmpty && len(fields) == 0 {
		fields = append(fields, curField)
	}
	return fields
}

// indexElems returns the elements of an indexed or associative array
// referenced via a bare ${arr[@]} or ${arr[*]} expansion.
func (cfg *Config) indexElems(pe *syntax.ParamExp) []string {
	vr := cfg.Env.Get(pe.Param.Value)
	_, vr = vr.Resolve(cfg.Env)
	switch vr.Kind {
	case Indexed:
		return vr.List
	case Associative:
		keys := make([]string, 0, len(vr.Map))
		for k := range vr.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = vr.Map[k]
		}
		return vals
	default:
		if vr.IsSet() {
			return []string{vr.Str}
		}
		return nil
	}
}

func (cfg *Config) expandUser(field string) string {
	if len(field) == 0 || field[0] != '~' {
		return field
	}
	name := field[1:]
	rest := ""
	if i := strings.IndexByte(name, '/'); i >= 0 {
		rest = name[i:]
		name = name[:i]
	}
	if name == "" {
		return cfg.envGet("HOME") + rest
	}
	u, err := user.Lookup(name)
	if err != nil {
		return field
	}
	return u.HomeDir + rest
}

// Format implements the shell's printf-style "%" formatting, shared by the
// printf builtin and $'...' ANSI-C quoting helpers. It returns the
// formatted output and the number of arguments consumed.
func Format(cfg *Config, format string, args []string) (string, int, error) {
	buf := cfg.strBuilder()
	esc := false
	var fmts []rune
	initialArgs := len(args)

	for _, c := range format {
		switch {
		case esc:
			esc = false
			switch c {
			case 'n':
				buf.WriteRune('\n')
			case 'r':
				buf.WriteRune('\r')
			case 't':
				buf.WriteRune('\t')
			case '\\':
				buf.WriteRune('\\')
			default:
				buf.WriteRune('\\')
				buf.WriteRune(c)
			}
		case len(fmts) > 0:
			switch c {
			case '%':
				buf.WriteByte('%')
				fmts = nil
			case 'c':
				var b byte
				if len(args) > 0 {
					arg := ""
					arg, args = args[0], args[1:]
					if len(arg) > 0 {
						b = arg[0]
					}
				}
				buf.WriteByte(b)
				fmts = nil
			case '+', '-', ' ':
				if len(fmts) > 1 {
					return "", 0, fmt.Errorf("invalid format char: %c", c)
				}
				fmts = append(fmts, c)
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.':
				fmts = append(fmts, c)
			case 's', 'd', 'i', 'u', 'o', 'x', 'X':
				arg := ""
				if len(args) > 0 {
					arg, args = args[0], args[1:]
				}
				var farg any = arg
				if c != 's' {
					n, _ := strconv.ParseInt(strings.TrimSpace(arg), 0, 64)
					if c == 'i' || c == 'd' {
						farg = int(n)
					} else {
						farg = uint(n)
					}
					if c == 'i' || c == 'u' {
						c = 'd'
					}
				}
				fmts = append(fmts, c)
				fmt.Fprintf(buf, string(fmts), farg)
				fmts = nil
			case 'q':
				arg := ""
				if len(args) > 0 {
					arg, args = args[0], args[1:]
				}
				buf.WriteString(strconv.Quote(arg))
				fmts = nil
			default:
				return "", 0, fmt.Errorf("invalid format char: %c", c)
			}
		case c == '\\':
			esc = true
		case args != nil && c == '%':
			fmts = []rune{c}
		default:
			buf.WriteRune(c)
		}
	}
	if len(fmts) > 0 {
		return "", 0, fmt.Errorf("missing format char")
	}
	return buf.String(), initialArgs - len(args), nil
}

// ReadFields splits s following IFS rules into at most n fields (0 meaning
// unlimited), as used by the read builtin. When raw is false, a backslash
// escapes the following rune and is itself removed from the result.
func ReadFields(cfg *Config, s string, n int, raw bool) []string {
	cfg.ifsUpdated()
	type pos struct{ start, end int }
	var fpos []pos

	runes := make([]rune, 0, len(s))
	infield := false
	esc := false
	for _, r := range s {
		if infield {
			if cfg.ifsRune(r) && (raw || !esc) {
				fpos[len(fpos)-1].end = len(runes)
				infield = false
			}
		} else {
			if !cfg.ifsRune(r) && (raw || !esc) {
				fpos = append(fpos, pos{start: len(runes), end: -1})
				infield = true
			}
		}
		if r == '\\' {
			if raw || esc {
				runes = append(runes, r)
			}
			esc = !esc
			continue
		}
		runes = append(runes, r)
		esc = false
	}
	if len(fpos) == 0 {
		return nil
	}
	if infield {
		fpos[len(fpos)-1].end = len(runes)
	}

	switch {
	case n == 1:
		fpos[0].start, fpos[0].end = 0, len(runes)
		fpos = fpos[:1]
	case n > 0 && n < len(fpos):
		fpos[n-1].end = fpos[len(fpos)-1].end
		fpos = fpos[:n]
	}

	fields := make([]string, len(fpos))
	for i, p := range fpos {
		fields[i] = string(runes[p.start:p.end])
	}
	return fields
}

func findAllIndex(pat, name string, n int) [][]int {
	expr, err := syntax.TranslatePattern(pat, true)
	if err != nil {
		return nil
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return rx.FindAllStringIndex(name, n)
}

func hasGlob(s string) bool {
	return strings.ContainsAny(s, `*?[`)
}

// quoteMeta escapes glob metacharacters so that a pattern matcher treats
// them literally, the inverse of a shell's unquoted * ? [ handling.
func quoteMeta(s string) string {
	if !hasGlob(s) {
		return s
	}
	var buf strings.Builder
	for _, r := range s {
		if r == '*' || r == '?' || r == '[' || r == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	return buf.String()
}

// quotedElems reports whether pe is a bare "@" or "*" index expansion, such
// as ${@} or ${arr[@]}, which require special treatment during splitting.
func quotedElems(pe *syntax.ParamExp) bool {
	if pe == nil || pe.Length || pe.Excl {
		return false
	}
	if pe.Param.Value == "@" {
		return true
	}
	return anyOfLit(paramIndex(pe), "@", "*") != ""
}

// glob matches a slash-separated pattern against the filesystem exposed via
// cfg.ReadDir2, relative to dir when the pattern is itself relative.
func (cfg *Config) glob(dir, pat string) ([]string, error) {
	abs := path.IsAbs(pat)
	root := "."
	if abs {
		root = "/"
	} else if dir != "" {
		root = dir
	}
	parts := strings.Split(strings.TrimPrefix(pat, "/"), "/")
	matches := []string{root}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if part == "**" && cfg.GlobStar {
			var newMatches []string
			latest := matches
			for {
				var next []string
				for _, d := range latest {
					next = append(next, cfg.globDir(d, ".*", true)...)
				}
				if len(next) == 0 {
					break
				}
				newMatches = append(newMatches, next...)
				latest = next
			}
			matches = append(matches, newMatches...)
			continue
		}
		expr, err := syntax.TranslatePattern(part, true)
		if err != nil {
			return nil, err
		}
		if cfg.NoCaseGlob {
			expr = "(?i)" + expr
		}
		var newMatches []string
		for _, d := range matches {
			newMatches = append(newMatches, cfg.globDir(d, "^"+expr+"$", strings.HasPrefix(part, "."))...)
		}
		matches = newMatches
	}
	if !abs {
		for i, m := range matches {
			matches[i] = strings.TrimPrefix(strings.TrimPrefix(m, root), "/")
		}
	}
	return matches, nil
}

func (cfg *Config) globDir(dir, expr string, matchDot bool) []string {
	entries, err := cfg.ReadDir2(dir)
	if err != nil {
		return nil
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !matchDot {
			continue
		}
		if rx.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	matches := make([]string, len(names))
	for i, name := range names {
		if dir == "." || dir == "" {
			matches[i] = name
		} else {
			matches[i] = filepath.Join(dir, name)
		}
	}
	return matches
}
