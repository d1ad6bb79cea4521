package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// checkLevel grades one line of the check report.
type checkLevel int

const (
	levelInfo checkLevel = iota
	levelPass
	levelFail
)

const ansiReset = "\x1b[0m"

var levelStyles = map[checkLevel]struct{ tag, color string }{
	levelInfo: {"INFO", "\x1b[36m"},
	levelPass: {"OK", "\x1b[32m"},
	levelFail: {"FAIL", "\x1b[31m"},
}

// checkReport collects labelled results under section headings and counts
// failures.
type checkReport struct {
	colorize bool
	lines    []string
	failures int
}

func newCheckReport(out io.Writer) *checkReport {
	return &checkReport{colorize: isTerminal(out)}
}

func (r *checkReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	r.lines = append(r.lines, r.paint(levelInfo, title+":"))
}

func (r *checkReport) add(label string, level checkLevel, detail string) {
	if level == levelFail {
		r.failures++
	}
	line := fmt.Sprintf("  %-18s %-6s %s", label, "["+levelStyles[level].tag+"]", detail)
	r.lines = append(r.lines, r.paint(level, strings.TrimRight(line, " ")))
}

func (r *checkReport) paint(level checkLevel, s string) string {
	if !r.colorize {
		return s
	}
	return levelStyles[level].color + s + ansiReset
}

func (r *checkReport) String() string {
	return strings.Join(r.lines, "\n")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
