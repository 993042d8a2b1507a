package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if a.Operator == OpExists || a.Operator == OpNotExists {
		return a.Subject + " " + a.Operator.String()
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpNotIncludes
	OpIn
	OpNotIn
	OpType
	OpSchema
)

var operatorNames = map[Operator]string{
	OpEquals:         "==",
	OpNotEquals:      "!=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpContains:       "contains",
	OpNotContains:    "!contains",
	OpStartsWith:     "startsWith",
	OpEndsWith:       "endsWith",
	OpMatches:        "matches",
	OpExists:         "exists",
	OpNotExists:      "!exists",
	OpLength:         "length",
	OpIncludes:       "includes",
	OpNotIncludes:    "!includes",
	OpIn:             "in",
	OpNotIn:          "!in",
	OpType:           "type",
	OpSchema:         "schema",
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorNames))
	for op, name := range operatorNames {
		m[strings.ToLower(name)] = op
	}
	return m
}()

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unknown"
}

// Parse reads an expectation expression: "<subject> <operator> [value]" or
// the shorthand "path=value".
func Parse(expr string) (*Assertion, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expectation")
	}

	fields := strings.Fields(expr)
	if len(fields) == 1 {
		path, value, ok := strings.Cut(expr, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid expectation %q: expected \"<subject> <operator> [value]\" or \"path=value\"", expr)
		}
		return &Assertion{Subject: bodySubject(path), Operator: OpEquals, Expected: ParseValue(value)}, nil
	}

	subject := fields[0]
	rest := strings.TrimSpace(expr[len(subject):])

	// "header <Name> <op> ..." names the header in a second word.
	if subject == "header" && len(fields) >= 3 {
		subject = "header " + fields[1]
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
	}

	opWord, value, _ := strings.Cut(rest, " ")
	op, ok := operatorsByName[strings.ToLower(opWord)]
	if !ok {
		return nil, fmt.Errorf("invalid expectation %q: unknown operator %q", expr, opWord)
	}

	a := &Assertion{Subject: subject, Operator: op}
	value = strings.TrimSpace(value)
	switch op {
	case OpExists, OpNotExists:
		if value != "" {
			return nil, fmt.Errorf("invalid expectation %q: %s takes no value", expr, op)
		}
	case OpMatches, OpSchema:
		if value == "" {
			return nil, fmt.Errorf("invalid expectation %q: missing value", expr)
		}
		a.Expected = unquote(value)
	default:
		if value == "" {
			return nil, fmt.Errorf("invalid expectation %q: missing value", expr)
		}
		a.Expected = ParseValue(value)
	}
	return a, nil
}

func bodySubject(path string) string {
	switch {
	case path == "body", strings.HasPrefix(path, "body."), strings.HasPrefix(path, "body["):
		return path
	}
	return "body." + path
}

// ParseValue interprets an expected value: JSON literals (numbers, true,
// false, null, quoted strings, arrays) or a bare string.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	switch s[0] {
	case '"', '[', '{', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	case '\'':
		return unquote(s)
	}
	return s
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// StatusIn expects the status code to be one of codes.
func StatusIn(codes ...int) *Assertion {
	if len(codes) == 1 {
		return &Assertion{Subject: "status", Operator: OpEquals, Expected: codes[0]}
	}
	expected := make([]any, len(codes))
	for i, c := range codes {
		expected[i] = c
	}
	return &Assertion{Subject: "status", Operator: OpIn, Expected: expected}
}

// BodyContains expects the raw body to contain s.
func BodyContains(s string) *Assertion {
	return &Assertion{Subject: "raw", Operator: OpContains, Expected: s}
}

// BodySchema expects the JSON body to validate against the schema at path.
func BodySchema(path string) *Assertion {
	return &Assertion{Subject: "body", Operator: OpSchema, Expected: path}
}
