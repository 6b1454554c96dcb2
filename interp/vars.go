package interp

import (
	"fmt"
	"os"
	"strconv"

	"github.com/corrosive-labs/vsh/expand"
	"github.com/corrosive-labs/vsh/syntax"
)

// overlayEnviron layers a map of locally-set variables on top of a parent
// [expand.Environ], so that function scopes and subshells can shadow
// variables without mutating the environment they were cloned from.
type overlayEnviron struct {
	parent    expand.Environ
	values    map[string]expand.Variable
	funcScope bool
}

func newOverlayEnviron(parent expand.Environ, funcScope bool) *overlayEnviron {
	return &overlayEnviron{parent: parent, funcScope: funcScope}
}

func (o *overlayEnviron) Get(name string) expand.Variable {
	if vr, ok := o.values[name]; ok {
		return vr
	}
	if o.parent != nil {
		return o.parent.Get(name)
	}
	return expand.Variable{}
}

func (o *overlayEnviron) Set(name string, vr expand.Variable) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	cur := o.Get(name)
	if cur.ReadOnly && vr.Kind != expand.KeepValue {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if vr.Kind == expand.KeepValue {
		vr.Kind, vr.Str, vr.List, vr.Map = cur.Kind, cur.Str, cur.List, cur.Map
		vr.Set = cur.Set
	}
	if o.values == nil {
		o.values = make(map[string]expand.Variable)
	}
	o.values[name] = vr
	return nil
}

func (o *overlayEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	done := make(map[string]bool, len(o.values))
	for name, vr := range o.values {
		done[name] = true
		if !fn(name, vr) {
			return
		}
	}
	if o.parent != nil {
		o.parent.Each(func(name string, vr expand.Variable) bool {
			if done[name] {
				return true
			}
			return fn(name, vr)
		})
	}
}

// lookupVar resolves the special shell parameters (#, @, ?, $, etc.) as well
// as ordinary variables from the writable environment.
func (r *Runner) lookupVar(name string) expand.Variable {
	if name == "" {
		panic("variable name must not be empty")
	}
	switch name {
	case "#":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(len(r.Params))}
	case "@", "*":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: r.Params}
	case "?":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(int(r.lastExit.code))}
	case "$":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(os.Getpid())}
	case "PPID":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(os.Getppid())}
	case "DIRSTACK":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: r.dirStack}
	case "0":
		name := r.filename
		if name == "" {
			name = "vsh"
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: name}
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(name[0] - '1')
		if i < len(r.Params) {
			return expand.Variable{Set: true, Kind: expand.String, Str: r.Params[i]}
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: ""}
	}
	vr := r.writeEnv.Get(name)
	if vr.Declared() {
		return vr
	}
	if r.opts[optNoUnset] {
		r.errf("%s: unbound variable\n", name)
		r.exit.code = 1
	}
	return expand.Variable{}
}

// envGet returns the string value of name, following any nameref chain.
func (r *Runner) envGet(name string) string {
	vr := r.lookupVar(name)
	_, vr = vr.Resolve(r.writeEnv)
	return vr.String()
}

func (r *Runner) setVar(name string, vr expand.Variable) {
	if err := r.writeEnv.Set(name, vr); err != nil {
		r.errf("%s\n", err)
		r.exit.code = 1
	}
}

func (r *Runner) setVarString(name, value string) {
	r.setVar(name, expand.Variable{Set: true, Kind: expand.String, Str: value})
}

func (r *Runner) delVar(name string) {
	cur := r.lookupVar(name)
	if cur.ReadOnly {
		r.errf("%s: readonly variable\n", name)
		r.exit.code = 1
		return
	}
	r.writeEnv.Set(name, expand.Variable{})
}

// setVarWithIndex implements assignments of the form "name[index]=value",
// updating an existing indexed or associative array in place.
func (r *Runner) setVarWithIndex(prev expand.Variable, name string, index syntax.ArithmExpr, vr expand.Variable) {
	if index == nil {
		r.setVar(name, vr)
		return
	}
	if prev.Kind == expand.Associative || stringIndex(index) {
		w, ok := index.(*syntax.Word)
		if !ok {
			return
		}
		k := r.literal(*w)
		m := make(map[string]string, len(prev.Map)+1)
		for kk, vv := range prev.Map {
			m[kk] = vv
		}
		m[k] = vr.Str
		r.setVar(name, expand.Variable{Set: true, Kind: expand.Associative, Map: m})
		return
	}
	var list []string
	switch prev.Kind {
	case expand.String:
		list = []string{prev.Str}
	case expand.Indexed:
		list = append([]string(nil), prev.List...)
	}
	k := r.arithm(index)
	for len(list) <= k {
		list = append(list, "")
	}
	list[k] = vr.Str
	r.setVar(name, expand.Variable{Set: true, Kind: expand.Indexed, List: list})
}

func stringIndex(index syntax.ArithmExpr) bool {
	w, ok := index.(*syntax.Word)
	if !ok || len(w.Parts) != 1 {
		return false
	}
	switch w.Parts[0].(type) {
	case *syntax.DblQuoted, *syntax.SglQuoted:
		return true
	}
	return false
}

// assignVal computes the new value of a variable assignment, honoring
// "+=" appends and the array/associative-array forms; it does not write the
// result back, leaving that to the caller via [Runner.setVar] or
// [Runner.setVarWithIndex].
func (r *Runner) assignVal(prev expand.Variable, as *syntax.Assign, valType string) expand.Variable {
	if as.Naked {
		return prev
	}
	if as.Array == nil && as.Value.Parts != nil {
		s := r.literal(as.Value)
		if as.Append && prev.IsSet() {
			switch prev.Kind {
			case expand.Indexed:
				list := append([]string(nil), prev.List...)
				if len(list) == 0 {
					list = append(list, "")
				}
				list[0] += s
				return expand.Variable{Set: true, Kind: expand.Indexed, List: list}
			default:
				return expand.Variable{Set: true, Kind: expand.String, Str: prev.String() + s}
			}
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: s}
	}
	if as.Array == nil {
		return expand.Variable{Set: true, Kind: expand.String, Str: ""}
	}
	elems := as.Array.Elems
	if valType == "" {
		if len(elems) == 0 || !stringIndex(elems[0].Index) {
			valType = "-a"
		} else {
			valType = "-A"
		}
	}
	if valType == "-A" {
		m := make(map[string]string, len(elems))
		for _, elem := range elems {
			w, ok := elem.Index.(*syntax.Word)
			if !ok {
				continue
			}
			m[r.literal(*w)] = r.literal(elem.Value)
		}
		if as.Append && prev.Kind == expand.Associative {
			merged := make(map[string]string, len(prev.Map)+len(m))
			for k, v := range prev.Map {
				merged[k] = v
			}
			for k, v := range m {
				merged[k] = v
			}
			m = merged
		}
		return expand.Variable{Set: true, Kind: expand.Associative, Map: m}
	}
	maxIndex := len(elems) - 1
	indexes := make([]int, len(elems))
	for i, elem := range elems {
		if elem.Index == nil {
			indexes[i] = i
			continue
		}
		k := r.arithm(elem.Index)
		indexes[i] = k
		if k > maxIndex {
			maxIndex = k
		}
	}
	strs := make([]string, maxIndex+1)
	for i, elem := range elems {
		strs[indexes[i]] = r.literal(elem.Value)
	}
	if as.Append {
		switch prev.Kind {
		case expand.String:
			strs = append([]string{prev.Str}, strs...)
		case expand.Indexed:
			strs = append(append([]string(nil), prev.List...), strs...)
		}
	}
	return expand.Variable{Set: true, Kind: expand.Indexed, List: strs}
}

func (r *Runner) setFunc(name string, body *syntax.Stmt) {
	if r.Funcs == nil {
		r.Funcs = make(map[string]*syntax.Stmt, 4)
	}
	r.Funcs[name] = body
}
