package interp

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/corrosive-labs/vsh/syntax"
	"github.com/corrosive-labs/vsh/vfs"
)

// bashTest evaluates a test expression, either from the "test"/"[" builtin
// (classic mode, no pattern matching on "==") or from a "[[ ]]" clause.
// It returns a non-empty string for true, and an empty string for false.
func (r *Runner) bashTest(ctx context.Context, expr syntax.TestExpr, classic bool) string {
	switch x := expr.(type) {
	case *syntax.Word:
		return r.literal(*x)
	case *syntax.ParenTest:
		return r.bashTest(ctx, x.X, classic)
	case *syntax.BinaryTest:
		if r.binTest(ctx, x.Op, x.X, x.Y, classic) {
			return "1"
		}
		return ""
	case *syntax.UnaryTest:
		if r.unTest(x.Op, r.bashTest(ctx, x.X, classic)) {
			return "1"
		}
		return ""
	}
	return ""
}

// binTest evaluates a binary test, given the raw left and right operands
// rather than pre-evaluated strings, so that "==" and "!=" under "[[ ]]"
// can pattern-match the right-hand side instead of comparing literally.
func (r *Runner) binTest(ctx context.Context, op syntax.BinTestOperator, xExpr, yExpr syntax.TestExpr, classic bool) bool {
	x := r.bashTest(ctx, xExpr, classic)
	if !classic {
		switch op {
		case syntax.TsEqual, syntax.TsNequal:
			pat := r.pattern(r.testWord(yExpr))
			matched := match(pat, x)
			if op == syntax.TsEqual {
				return matched
			}
			return !matched
		}
	}
	y := r.bashTest(ctx, yExpr, classic)
	return r.binTestLit(op, x, y)
}

func (r *Runner) testWord(expr syntax.TestExpr) syntax.Word {
	if w, ok := expr.(*syntax.Word); ok {
		return *w
	}
	return syntax.Word{}
}

func (r *Runner) binTestLit(op syntax.BinTestOperator, x, y string) bool {
	switch op {
	//case syntax.TsReMatch:
	case syntax.TsNewer:
		i1, ok1 := r.vfsStat(x)
		i2, ok2 := r.vfsStat(y)
		if !ok1 || !ok2 {
			return false
		}
		return i1.ModTime.After(i2.ModTime)
	case syntax.TsOlder:
		i1, ok1 := r.vfsStat(x)
		i2, ok2 := r.vfsStat(y)
		if !ok1 || !ok2 {
			return false
		}
		return i1.ModTime.Before(i2.ModTime)
	//case syntax.TsDevIno:
	case syntax.TsEql:
		return atoi(x) == atoi(y)
	case syntax.TsNeq:
		return atoi(x) != atoi(y)
	case syntax.TsLeq:
		return atoi(x) <= atoi(y)
	case syntax.TsGeq:
		return atoi(x) >= atoi(y)
	case syntax.TsLss:
		return atoi(x) < atoi(y)
	case syntax.TsGtr:
		return atoi(x) > atoi(y)
	case syntax.AndTest:
		return x != "" && y != ""
	case syntax.OrTest:
		return x != "" || y != ""
	case syntax.TsEqual:
		return x == y
	case syntax.TsNequal:
		return x != y
	case syntax.TsBefore:
		return x < y
	case syntax.TsAfter:
		return x > y
	default:
		panic(fmt.Sprintf("unhandled binary test op: %v", op))
	}
}

// vfsStat resolves name against the Runner's current directory and stats it
// through the sandboxed filesystem, following symlinks.
func (r *Runner) vfsStat(name string) (vfs.Info, bool) {
	resolved, err := r.FS.ResolvePath(r.Dir, name)
	if err != nil {
		return vfs.Info{}, false
	}
	info, err := r.FS.Stat(resolved)
	if err != nil {
		return vfs.Info{}, false
	}
	return info, true
}

func (r *Runner) vfsLstat(name string) (vfs.Info, bool) {
	resolved, err := r.FS.ResolvePath(r.Dir, name)
	if err != nil {
		return vfs.Info{}, false
	}
	info, err := r.FS.Lstat(resolved)
	if err != nil {
		return vfs.Info{}, false
	}
	return info, true
}

func (r *Runner) statMode(name string, mode fs.FileMode) bool {
	info, ok := r.vfsStat(name)
	return ok && info.Mode&mode != 0
}

func (r *Runner) unTest(op syntax.UnTestOperator, x string) bool {
	switch op {
	case syntax.TsExists:
		_, ok := r.vfsStat(x)
		return ok
	case syntax.TsRegFile:
		info, ok := r.vfsStat(x)
		return ok && info.Mode.IsRegular()
	case syntax.TsDirect:
		return r.statMode(x, fs.ModeDir)
	//case syntax.TsCharSp:
	//case syntax.TsBlckSp:
	case syntax.TsNmPipe:
		return r.statMode(x, fs.ModeNamedPipe)
	case syntax.TsSocket:
		return r.statMode(x, fs.ModeSocket)
	case syntax.TsSmbLink:
		_, ok := r.vfsLstat(x)
		if !ok {
			return false
		}
		info, _ := r.vfsLstat(x)
		return info.Mode&fs.ModeSymlink != 0
	case syntax.TsSticky:
		return r.statMode(x, fs.ModeSticky)
	case syntax.TsGIDSet:
		return r.statMode(x, fs.ModeSetgid)
	case syntax.TsUIDSet:
		return r.statMode(x, fs.ModeSetuid)
	//case syntax.TsGrpOwn:
	//case syntax.TsUsrOwn:
	//case syntax.TsModif:
	//case syntax.TsRead:
	//case syntax.TsWrite:
	//case syntax.TsExec:
	case syntax.TsNoEmpty:
		info, ok := r.vfsStat(x)
		return ok && info.Size > 0
	//case syntax.TsFdTerm:
	case syntax.TsEmpStr:
		return x == ""
	case syntax.TsNempStr:
		return x != ""
	//case syntax.TsOptSet:
	//case syntax.TsVarSet:
	//case syntax.TsRefVar:
	case syntax.TsNot:
		return x == ""
	default:
		panic(fmt.Sprintf("unhandled unary test op: %v", op))
	}
}
