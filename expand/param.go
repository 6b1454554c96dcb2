package expand

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/corrosive-labs/vsh/syntax"
)

// paramIndex returns the word inside a ParamExp's array index, if any.
func paramIndex(pe *syntax.ParamExp) *syntax.Word {
	if pe.Ind == nil {
		return nil
	}
	return &pe.Ind.Word
}

func anyOfLit(v any, vals ...string) string {
	word, _ := v.(*syntax.Word)
	if word == nil || len(word.Parts) != 1 {
		return ""
	}
	lit, ok := word.Parts[0].(*syntax.Lit)
	if !ok {
		return ""
	}
	for _, val := range vals {
		if lit.Value == val {
			return val
		}
	}
	return ""
}

// UnsetParameterError is returned (or passed to [Config.err]) when a
// parameter expansion of the form ${var:?msg} finds var unset or empty.
type UnsetParameterError struct {
	Expr    *syntax.ParamExp
	Message string
}

func (u UnsetParameterError) Error() string {
	return u.Message
}

func (cfg *Config) paramExp(pe *syntax.ParamExp) string {
	oldParam := cfg.curParam
	cfg.curParam = pe
	defer func() { cfg.curParam = oldParam }()

	name := pe.Param.Value
	index := paramIndex(pe)
	switch name {
	case "@", "*":
		index = &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: name}}}
	}

	var vr Variable
	switch name {
	case "LINENO":
		// The only parameter that can't be served by the environment
		// interface, since it depends on the current parse position.
		line := uint64(0)
		if cfg.curParam != nil {
			line = uint64(cfg.curParam.Pos().Line())
		}
		vr = Variable{Set: true, Kind: String, Str: strconv.FormatUint(line, 10)}
	default:
		vr = cfg.Env.Get(name)
	}
	set := vr.IsSet()
	str := cfg.varStr(vr, 0)
	if index != nil {
		str = cfg.varInd(vr, index, 0)
	}

	slicePos := func(expr syntax.ArithmExpr) int {
		p, err := Arithm(cfg, expr)
		if err != nil {
			cfg.err(err)
		}
		if p < 0 {
			p = len(str) + p
			if p < 0 {
				p = len(str)
			}
		} else if p > len(str) {
			p = len(str)
		}
		return p
	}

	elems := []string{str}
	if anyOfLit(index, "@", "*") != "" {
		switch vr.Kind {
		case Indexed:
			elems = vr.List
		case Associative:
			elems = cfg.indexElems(pe)
		default:
			elems = nil
			if vr.IsSet() {
				elems = []string{str}
			}
		}
	}

	switch {
	case pe.Length:
		n := len(elems)
		if anyOfLit(index, "@", "*") == "" {
			n = utf8.RuneCountInString(str)
		}
		str = strconv.Itoa(n)
	case pe.Excl:
		str = cfg.paramIndirect(pe, vr, str)
	case pe.Slice != nil:
		if pe.Slice.Offset != nil {
			offset := slicePos(pe.Slice.Offset)
			str = str[offset:]
		}
		if pe.Slice.Length != nil {
			length := slicePos(pe.Slice.Length)
			if length < len(str) {
				str = str[:length]
			}
		}
	case pe.Repl != nil:
		orig, err := Pattern(cfg, pe.Repl.Orig)
		if err != nil {
			cfg.err(err)
		}
		with, err := Literal(cfg, pe.Repl.With)
		if err != nil {
			cfg.err(err)
		}
		n := 1
		if pe.Repl.All {
			n = -1
		}
		locs := findAllIndex(orig, str, n)
		buf := cfg.strBuilder()
		last := 0
		for _, loc := range locs {
			buf.WriteString(str[last:loc[0]])
			buf.WriteString(with)
			last = loc[1]
		}
		buf.WriteString(str[last:])
		str = buf.String()
	case pe.Exp != nil:
		str = cfg.paramExpOp(pe, name, set, str, elems)
	}
	return str
}

// paramIndirect implements ${!name}, ${!prefix*}, ${!prefix@},
// ${!arr[@]}/${!arr[*]} and indirection through a plain string variable.
// pe.Names carries the ${!prefix*}/${!prefix@} operator, if any; pe.Param
// is the underlying name or prefix, with the parser-stripped leading "!"
// (and any trailing names-operator) already removed.
func (cfg *Config) paramIndirect(pe *syntax.ParamExp, vr Variable, str string) string {
	var strs []string
	switch {
	case pe.Names != 0:
		strs = cfg.namesByPrefix(pe.Param.Value)
	case vr.Kind == NameRef:
		strs = append(strs, vr.Str)
	case anyOfLit(paramIndex(pe), "@", "*") != "":
		switch vr.Kind {
		case Indexed:
			for i, e := range vr.List {
				if e != "" {
					strs = append(strs, strconv.Itoa(i))
				}
			}
		case Associative:
			for k := range vr.Map {
				strs = append(strs, k)
			}
		}
	case vr.Kind == Indexed:
		for i, e := range vr.List {
			if e != "" {
				strs = append(strs, strconv.Itoa(i))
			}
		}
	case vr.Kind == Associative:
		for k := range vr.Map {
			strs = append(strs, k)
		}
	case str != "":
		// ${!name}: use str as the name of another variable to look up.
		ind := cfg.Env.Get(str)
		strs = append(strs, cfg.varStr(ind, 0))
	}
	sort.Strings(strs)
	return strings.Join(strs, " ")
}

func (cfg *Config) paramExpOp(pe *syntax.ParamExp, name string, set bool, str string, elems []string) string {
	arg, err := Literal(cfg, pe.Exp.Word)
	if err != nil {
		cfg.err(err)
	}
	switch op := pe.Exp.Op; op {
	case syntax.SubstColPlus:
		if str == "" {
			return str
		}
		fallthrough
	case syntax.SubstPlus:
		if set {
			str = arg
		}
	case syntax.SubstMinus:
		if set {
			return str
		}
		fallthrough
	case syntax.SubstColMinus:
		if str == "" {
			str = arg
		}
	case syntax.SubstQuest:
		if set {
			return str
		}
		fallthrough
	case syntax.SubstColQuest:
		if str == "" {
			cfg.err(UnsetParameterError{Expr: pe, Message: arg})
		}
	case syntax.SubstAssgn:
		if set {
			return str
		}
		fallthrough
	case syntax.SubstColAssgn:
		if str == "" {
			if err := cfg.envSet(name, arg); err != nil {
				cfg.err(err)
			}
			str = arg
		}
	case syntax.RemSmallPrefix, syntax.RemLargePrefix,
		syntax.RemSmallSuffix, syntax.RemLargeSuffix:
		suffix := op == syntax.RemSmallSuffix || op == syntax.RemLargeSuffix
		large := op == syntax.RemLargePrefix || op == syntax.RemLargeSuffix
		out := make([]string, len(elems))
		for i, elem := range elems {
			out[i] = removePattern(elem, arg, suffix, large)
		}
		str = strings.Join(out, " ")
	case syntax.UpperFirst, syntax.UpperAll, syntax.LowerFirst, syntax.LowerAll:
		str = applyCase(elems, arg, op)
	case syntax.OtherParamOps:
		str = cfg.otherParamOp(pe, arg, str, elems, name)
	}
	return str
}

func applyCase(elems []string, arg string, op syntax.ParExpOperator) string {
	caseFunc := unicode.ToLower
	if op == syntax.UpperFirst || op == syntax.UpperAll {
		caseFunc = unicode.ToUpper
	}
	all := op == syntax.UpperAll || op == syntax.LowerAll

	out := make([]string, len(elems))
	for i, elem := range elems {
		if arg == "" {
			// no pattern: ^ and , change the first rune, ^^ and ,, every rune
			rs := []rune(elem)
			for ri, r := range rs {
				rs[ri] = caseFunc(r)
				if !all {
					break
				}
			}
			out[i] = string(rs)
			continue
		}
		expr, err := syntax.TranslatePattern(arg, false)
		if err != nil {
			out[i] = elem
			continue
		}
		rx := regexpCompile(expr)
		rs := []rune(elem)
		for ri, r := range rs {
			if rx != nil && rx.MatchString(string(r)) {
				rs[ri] = caseFunc(r)
				if !all {
					break
				}
			}
		}
		out[i] = string(rs)
	}
	return strings.Join(out, " ")
}

// otherParamOp implements the ${v@op} family of transforms: Q (quote for
// re-use as shell input), E (ANSI-C unquote), P (prompt-style expansion,
// here just the literal value), A (declare-style reconstruction), a (the
// attribute flags), K/k (quoted element values), and the case transforms
// U (upper-case all), u (upper-case the first rune) and L (lower-case all).
func (cfg *Config) otherParamOp(pe *syntax.ParamExp, arg, str string, elems []string, name string) string {
	switch arg {
	case "Q":
		return quoteShell(str)
	case "E":
		tail := str
		var rns []rune
		for tail != "" {
			var rn rune
			rn, _, tail, _ = strconv.UnquoteChar(tail, 0)
			rns = append(rns, rn)
		}
		return string(rns)
	case "P":
		// Prompt-style expansion is identical to the parameter's plain
		// value once the shell isn't driving an interactive prompt.
		return str
	case "A":
		return declareStatement(name, cfg.Env.Get(name), false)
	case "a":
		return attributeFlags(cfg.Env.Get(name))
	case "K":
		return quoteIndexed(elems)
	case "k":
		return quoteIndexed(elems)
	case "U":
		return strings.ToUpper(str)
	case "u":
		if str == "" {
			return str
		}
		r, size := utf8.DecodeRuneInString(str)
		return string(unicode.ToUpper(r)) + str[size:]
	case "L":
		return strings.ToLower(str)
	default:
		cfg.errf("unexpected %%@%s param expansion", arg)
		return ""
	}
}

// quoteShell produces a single-quoted string that, when given back to the
// shell, reproduces s exactly.
func quoteShell(s string) string {
	if !strings.ContainsAny(s, "'\x00") {
		return "'" + s + "'"
	}
	var buf strings.Builder
	buf.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			buf.WriteString(`'\''`)
			continue
		}
		buf.WriteRune(r)
	}
	buf.WriteByte('\'')
	return buf.String()
}

// quoteIndexed single-quotes each element value of an array-like expansion
// and joins them with spaces, as used by ${arr[@]@K} and ${arr[@]@k}. It
// writes no keys, so K and k give the same output.
func quoteIndexed(elems []string) string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = quoteShell(e)
	}
	return strings.Join(out, " ")
}

func attributeFlags(vr Variable) string {
	var buf strings.Builder
	switch vr.Kind {
	case Indexed:
		buf.WriteByte('a')
	case Associative:
		buf.WriteByte('A')
	case NameRef:
		buf.WriteByte('n')
	}
	if vr.Exported {
		buf.WriteByte('x')
	}
	if vr.ReadOnly {
		buf.WriteByte('r')
	}
	return buf.String()
}

// declareStatement reconstructs a `declare` command that would recreate vr,
// used by the ${v@A} transform.
func declareStatement(name string, vr Variable, _ bool) string {
	flags := attributeFlags(vr)
	decl := "declare"
	if flags != "" {
		decl += " -" + flags
	}
	switch vr.Kind {
	case Indexed:
		parts := make([]string, len(vr.List))
		for i, v := range vr.List {
			parts[i] = quoteShell(v)
		}
		return decl + " " + name + "=(" + strings.Join(parts, " ") + ")"
	case Associative:
		keys := make([]string, 0, len(vr.Map))
		for k := range vr.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = "[" + quoteShell(k) + "]=" + quoteShell(vr.Map[k])
		}
		return decl + " " + name + "=(" + strings.Join(parts, " ") + ")"
	default:
		return decl + " " + name + "=" + quoteShell(vr.Str)
	}
}

func removePattern(str, pattern string, fromEnd, greedy bool) string {
	expr, err := syntax.TranslatePattern(pattern, greedy)
	if err != nil {
		return str
	}
	switch {
	case fromEnd && !greedy:
		expr = ".*(" + expr + ")$"
	case fromEnd:
		expr = "(" + expr + ")$"
	default:
		expr = "^(" + expr + ")"
	}
	rx := regexpCompile(expr)
	if rx == nil {
		return str
	}
	if loc := rx.FindStringSubmatchIndex(str); loc != nil {
		str = str[:loc[2]] + str[loc[3]:]
	}
	return str
}

func (cfg *Config) varStr(vr Variable, depth int) string {
	if depth > maxNameRefDepth {
		return ""
	}
	if vr.Kind == NameRef {
		vr = cfg.Env.Get(vr.Str)
		return cfg.varStr(vr, depth+1)
	}
	return vr.String()
}

func (cfg *Config) varInd(vr Variable, idx syntax.ArithmExpr, depth int) string {
	if depth > maxNameRefDepth {
		return ""
	}
	switch vr.Kind {
	case NameRef:
		vr = cfg.Env.Get(vr.Str)
		return cfg.varInd(vr, idx, depth+1)
	case Indexed:
		switch anyOfLit(idx, "@", "*") {
		case "@":
			return strings.Join(vr.List, " ")
		case "*":
			return cfg.ifsJoin(vr.List)
		}
		i, err := Arithm(cfg, idx)
		if err != nil {
			cfg.err(err)
		}
		if i >= 0 && i < len(vr.List) {
			return vr.List[i]
		}
		return ""
	case Associative:
		if lit := anyOfLit(idx, "@", "*"); lit != "" {
			keys := make([]string, 0, len(vr.Map))
			for k := range vr.Map {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			strs := make([]string, len(keys))
			for i, k := range keys {
				strs[i] = vr.Map[k]
			}
			if lit == "*" {
				return cfg.ifsJoin(strs)
			}
			return strings.Join(strs, " ")
		}
		w, _ := idx.(*syntax.Word)
		var word syntax.Word
		if w != nil {
			word = *w
		}
		key, err := Literal(cfg, word)
		if err != nil {
			cfg.err(err)
		}
		return vr.Map[key]
	default:
		if i, err := Arithm(cfg, idx); err == nil && i == 0 {
			return vr.Str
		}
		return ""
	}
}

func (cfg *Config) namesByPrefix(prefix string) []string {
	var names []string
	cfg.Env.Each(func(name string, vr Variable) bool {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return true
	})
	return names
}

// regexpCompile is a thin wrapper so that malformed translated patterns
// degrade to "no match" instead of panicking deep inside expansion.
func regexpCompile(expr string) *regexp.Regexp {
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return rx
}
