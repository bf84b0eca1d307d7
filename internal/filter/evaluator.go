// Package filter compiles relationship filter criteria into executable
// predicates. The configurator uses it to preview which child records a
// cascade would touch and to sanity-check criteria before publish; the
// on-record runtime evaluation itself happens on the platform side.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"cascade-studio/internal/model"
)

// Evaluator compiles criteria strings to expr programs. Compiled programs are
// cached by criteria string.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate reports whether a child record matches the criteria. An empty
// criteria string matches everything.
func (e *Evaluator) Evaluate(criteria string, record map[string]any) (bool, error) {
	if strings.TrimSpace(criteria) == "" {
		return true, nil
	}

	prog, err := e.compile(criteria)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(prog, map[string]any{"record": record})
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter did not return bool")
	}
	return matched, nil
}

func (e *Evaluator) compile(criteria string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.cache[criteria]; ok {
		return prog, nil
	}

	source, err := Expression(criteria)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	e.cache[criteria] = prog
	return prog, nil
}

// Expression translates a criteria string into an expr source string. All
// criteria are conjoined.
func Expression(criteria string) (string, error) {
	parsed, err := model.ParseFilterCriteria(criteria)
	if err != nil {
		return "", err
	}
	if len(parsed) == 0 {
		return "true", nil
	}

	parts := make([]string, len(parsed))
	for i, fc := range parsed {
		frag, err := fragment(fc)
		if err != nil {
			return "", err
		}
		parts[i] = frag
	}
	return strings.Join(parts, " && "), nil
}

func fragment(fc model.FilterCriterion) (string, error) {
	field := fmt.Sprintf("record[%s]", strconv.Quote(fc.Field))

	switch fc.Operator {
	case "eq":
		return fmt.Sprintf("%s == %s", field, literal(fc.Value)), nil
	case "ne":
		return fmt.Sprintf("%s != %s", field, literal(fc.Value)), nil
	case "gt":
		return fmt.Sprintf("%s > %s", field, literal(fc.Value)), nil
	case "ge":
		return fmt.Sprintf("%s >= %s", field, literal(fc.Value)), nil
	case "lt":
		return fmt.Sprintf("%s < %s", field, literal(fc.Value)), nil
	case "le":
		return fmt.Sprintf("%s <= %s", field, literal(fc.Value)), nil
	case "like":
		return fmt.Sprintf("%s contains %s", field, strconv.Quote(fc.Value)), nil
	case "null":
		return fmt.Sprintf("%s == nil", field), nil
	case "notnull":
		return fmt.Sprintf("%s != nil", field), nil
	default:
		return "", fmt.Errorf("unknown filter operator %q", fc.Operator)
	}
}

// literal renders a criterion value as an expr literal: numbers and booleans
// stay bare, everything else is quoted.
func literal(value string) string {
	if value == "true" || value == "false" {
		return value
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return value
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	return strconv.Quote(value)
}
