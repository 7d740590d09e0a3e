// Package ai turns raw model output into a validated domain.ModelResponse and
// wraps model clients with instrumentation.
package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Stage names the ladder step that produced a parsed value.
type Stage string

const (
	StageNone     Stage = ""
	StageDirect   Stage = "direct"
	StageFenced   Stage = "fenced"
	StageBraces   Stage = "braces"
	StageRepaired Stage = "repaired"
)

// ParseResult is the tagged outcome of the repair ladder. Exactly one of
// Value and Err is set.
type ParseResult struct {
	Value map[string]any
	Stage Stage
	Err   error
}

// OK reports whether a stage produced an object.
func (r ParseResult) OK() bool { return r.Err == nil && r.Value != nil }

type stageFunc func(string) (map[string]any, error)

var (
	errNoCandidate = errors.New("no json candidate")
	fencePattern   = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")
)

var ladder = []struct {
	stage Stage
	fn    stageFunc
}{
	{StageDirect, parseDirect},
	{StageFenced, parseFenced},
	{StageBraces, parseBraces},
	{StageRepaired, parseRepaired},
}

// ParseLadder tries each stage in order and returns the first object decoded.
// When every stage fails, Err joins the per-stage errors.
func ParseLadder(raw string) ParseResult {
	var errs []error
	for _, s := range ladder {
		v, err := s.fn(raw)
		if err == nil {
			return ParseResult{Value: v, Stage: s.stage}
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.stage, err))
	}
	return ParseResult{Stage: StageNone, Err: errors.Join(errs...)}
}

func decodeObject(s string) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("not an object")
	}
	return v, nil
}

func parseDirect(raw string) (map[string]any, error) { return decodeObject(raw) }

func fenced(raw string) (string, bool) {
	m := fencePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func parseFenced(raw string) (map[string]any, error) {
	body, ok := fenced(raw)
	if !ok {
		return nil, errNoCandidate
	}
	return decodeObject(body)
}

func parseBraces(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errNoCandidate
	}
	return decodeObject(raw[start : end+1])
}

func parseRepaired(raw string) (map[string]any, error) {
	candidate, ok := fenced(raw)
	if !ok {
		start := strings.Index(raw, "{")
		if start < 0 {
			return nil, errNoCandidate
		}
		candidate = raw[start:]
	}
	return decodeObject(Repair(candidate))
}

// Repair applies textual fixes for truncated or sloppy JSON: trailing commas
// before a closer are removed, a dangling final comma is dropped, an
// unterminated string is closed and missing closers are appended in nesting
// order. String contents are never rewritten.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	out := make([]byte, 0, len(s)+8)
	comma := -1 // position in out of a comma not yet followed by a value
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			out = append(out, c)
			continue
		case ',':
			comma = len(out)
			out = append(out, c)
			continue
		case '}', ']':
			if comma >= 0 {
				out = append(out[:comma], out[comma+1:]...)
			}
			if n := len(stack); n > 0 && stack[n-1] == c {
				stack = stack[:n-1]
			}
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		}
		comma = -1
		out = append(out, c)
	}

	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
	}
	res := strings.TrimRight(string(out), " \t\r\n")
	if comma >= 0 && comma == len(res)-1 {
		res = res[:comma]
	}
	if strings.HasSuffix(res, ":") {
		res += "null"
	}
	var b strings.Builder
	b.WriteString(res)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
