package conformance

import (
	"fmt"
	"strings"
)

// Outcome is the verdict on one command.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "pass"
	case Failed:
		return "FAIL"
	case Skipped:
		return "skip"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the verdict on one command or case.
type Result struct {
	Command string
	Detail  string
	Line    int
	Outcome Outcome
}

func (r Result) String() string {
	s := fmt.Sprintf("%s %s", r.Outcome, r.Command)
	if r.Line > 0 {
		s = fmt.Sprintf("%s line %d: %s", r.Outcome, r.Line, r.Command)
	}
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	return s
}

// Report collects the results of a script or differential run.
type Report struct {
	Name    string
	Results []Result
	Passed  int
	Failed  int
	Skipped int
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case Passed:
		r.Passed++
	case Failed:
		r.Failed++
	case Skipped:
		r.Skipped++
	}
}

func (r *Report) pass(line int, cmd string) {
	r.add(Result{Line: line, Command: cmd, Outcome: Passed})
}

func (r *Report) fail(line int, cmd, format string, args ...any) {
	r.add(Result{Line: line, Command: cmd, Outcome: Failed, Detail: fmt.Sprintf(format, args...)})
}

func (r *Report) skip(line int, cmd, format string, args ...any) {
	r.add(Result{Line: line, Command: cmd, Outcome: Skipped, Detail: fmt.Sprintf(format, args...)})
}

// OK reports whether nothing failed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == Failed {
			out = append(out, res)
		}
	}
	return out
}

// Summary is a one-line tally.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d passed, %d failed, %d skipped", r.Name, r.Passed, r.Failed, r.Skipped)
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(r.Summary())
	for _, res := range r.Results {
		if res.Outcome == Passed {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(res.String())
	}
	return b.String()
}
