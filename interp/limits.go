package interp

import (
	"fmt"

	"github.com/corrosive-labs/vsh/syntax"
)

// Default execution-limit values; generous enough for ordinary scripts but
// small enough that a runaway input (`f(){ f;}; f` or `while true; do
// :; done`) is interrupted in well under a second.
const (
	DefaultMaxCallDepth      = 100
	DefaultMaxLoopIterations = 10000
	DefaultMaxCommandCount   = 1000000
	DefaultMaxBraceItems     = 10000
	DefaultMaxArithLen       = 4096
	DefaultMaxParseBytes     = syntax.DefaultMaxBytes
)

// LimitExitStatus is the reserved exit code returned when a Limits budget
// is exceeded, mirroring the convention used for fatal signal-like exits.
const LimitExitStatus = 137

// Limits bounds the resources a single Runner.Run call may consume, so that
// any script is guaranteed to terminate regardless of what it contains.
// Zero values in a Limits fall back to the Default* constants; use
// NoLimits() to disable a dimension explicitly.
type Limits struct {
	MaxCallDepth      int
	MaxLoopIterations int
	MaxCommandCount   int
	MaxBraceItems     int
	MaxArithLen       int
	MaxParseBytes     int
}

// NoLimits returns a Limits with every budget disabled; mostly useful in
// tests that want to exercise pathological input without tripping limits.
func NoLimits() Limits {
	return Limits{-1, -1, -1, -1, -1, -1}
}

func (l Limits) withDefaults() Limits {
	if l.MaxCallDepth == 0 {
		l.MaxCallDepth = DefaultMaxCallDepth
	}
	if l.MaxLoopIterations == 0 {
		l.MaxLoopIterations = DefaultMaxLoopIterations
	}
	if l.MaxCommandCount == 0 {
		l.MaxCommandCount = DefaultMaxCommandCount
	}
	if l.MaxBraceItems == 0 {
		l.MaxBraceItems = DefaultMaxBraceItems
	}
	if l.MaxArithLen == 0 {
		l.MaxArithLen = DefaultMaxArithLen
	}
	if l.MaxParseBytes == 0 {
		l.MaxParseBytes = DefaultMaxParseBytes
	}
	return l
}

// LimitError is raised when a Limits budget is breached. It carries enough
// detail that a host can report exactly which dimension tripped.
type LimitError struct {
	Limit    string
	Budget   int
	Position string
}

func (e LimitError) Error() string {
	if e.Position != "" {
		return fmt.Sprintf("%s: %s limit exceeded (max %d)", e.Position, e.Limit, e.Budget)
	}
	return fmt.Sprintf("%s limit exceeded (max %d)", e.Limit, e.Budget)
}

// limitCounters tracks the live counts for one Runner.Run invocation; it is
// reset at the start of every top-level exec so nested/recursive scripts
// invoked by the same long-lived Runner don't inherit a prior run's usage.
type limitCounters struct {
	callDepth    int
	commandCount int
}

func (r *Runner) resetLimitCounters() {
	r.limits = r.limits.withDefaults()
	r.counters = limitCounters{}
}

func (r *Runner) enterCall() {
	if r.limits.MaxCallDepth < 0 {
		return
	}
	r.counters.callDepth++
	if r.counters.callDepth > r.limits.MaxCallDepth {
		panic(LimitError{Limit: "maxCallDepth", Budget: r.limits.MaxCallDepth})
	}
}

func (r *Runner) exitCall() {
	if r.limits.MaxCallDepth < 0 {
		return
	}
	r.counters.callDepth--
}

func (r *Runner) countCommand() {
	if r.limits.MaxCommandCount < 0 {
		return
	}
	r.counters.commandCount++
	if r.counters.commandCount > r.limits.MaxCommandCount {
		panic(LimitError{Limit: "maxCommandCount", Budget: r.limits.MaxCommandCount})
	}
}

// loopGuard bounds the iterations of a single while/until/for/select/ForC
// loop; callers construct one at loop entry and call check() every pass.
type loopGuard struct {
	r     *Runner
	count int
}

func (r *Runner) newLoopGuard() *loopGuard {
	return &loopGuard{r: r}
}

func (g *loopGuard) check() {
	if g.r.limits.MaxLoopIterations < 0 {
		return
	}
	g.count++
	if g.count > g.r.limits.MaxLoopIterations {
		panic(LimitError{Limit: "maxLoopIterations", Budget: g.r.limits.MaxLoopIterations})
	}
}

// parser builds a [syntax.Parser] honoring this Runner's MaxParseBytes
// budget, for use by any builtin (eval, source, trap) that re-parses shell
// source mid-execution rather than running a File handed in up front. A
// negative MaxParseBytes (from [NoLimits]) disables the cap, matching
// syntax.MaxBytes's own n<=0 convention.
func (r *Runner) parser(opts ...syntax.ParserOption) *syntax.Parser {
	max := r.limits.MaxParseBytes
	if max == 0 {
		max = DefaultMaxParseBytes
	}
	opts = append([]syntax.ParserOption{syntax.MaxBytes(max)}, opts...)
	return syntax.NewParser(opts...)
}
