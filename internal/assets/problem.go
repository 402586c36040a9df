package assets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Problem is a diagnostic extracted from compiler output.
type Problem struct {
	// File is the file path where the problem occurred.
	File string

	// Line is the line number (1-based).
	Line int

	// Column is the column number (1-based, 0 if unknown).
	Column int

	// Message is the problem description.
	Message string
}

func (p Problem) String() string {
	switch {
	case p.Line > 0 && p.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", p.File, p.Line, p.Column, p.Message)
	case p.Line > 0:
		return fmt.Sprintf("%s:%d: %s", p.File, p.Line, p.Message)
	default:
		return fmt.Sprintf("%s: %s", p.File, p.Message)
	}
}

// problemPattern is a regexp with the capture groups of each field.
// A zero group index skips the field.
type problemPattern struct {
	regex   *regexp.Regexp
	file    int
	line    int
	column  int
	message int
}

// sassPatterns match dart-sass error output:
//
//	Error: expected "}".
//	  ╷
//	2 │ a { color: red;
//	  │                ^
//	  ╵
//	  - 2:16  root stylesheet
var sassPatterns = []problemPattern{
	{regex: regexp.MustCompile(`^(?:Error|error): (.+)$`), message: 1},
	{regex: regexp.MustCompile(`^\s+(\S+)\s+(\d+):(\d+)\s+\S.*$`), file: 1, line: 2, column: 3},
}

// matchProblem scans output and fills in every field any pattern matches.
// The first match of each field wins.
func matchProblem(output string, patterns []problemPattern) (Problem, bool) {
	var p Problem
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, pat := range patterns {
			m := pat.regex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			found = true
			if pat.message > 0 && p.Message == "" {
				p.Message = m[pat.message]
			}
			if pat.file > 0 && p.File == "" {
				p.File = m[pat.file]
			}
			if pat.line > 0 && p.Line == 0 {
				p.Line, _ = strconv.Atoi(m[pat.line])
			}
			if pat.column > 0 && p.Column == 0 {
				p.Column, _ = strconv.Atoi(m[pat.column])
			}
		}
	}
	return p, found
}
