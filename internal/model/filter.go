package model

import (
	"fmt"
	"strings"
)

// FilterCriterion is one (field, operator, value) triple. Criteria are
// serialized semicolon-joined as "field|op|value;field|op|value".
type FilterCriterion struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Operators recognized in filter criteria. Null checks carry no value.
var FilterOperators = []string{"eq", "ne", "gt", "ge", "lt", "le", "like", "null", "notnull"}

// KnownOperator reports whether op is a recognized filter operator.
func KnownOperator(op string) bool {
	for _, known := range FilterOperators {
		if op == known {
			return true
		}
	}
	return false
}

// String serializes the criterion back to its triple form.
func (fc FilterCriterion) String() string {
	return fc.Field + "|" + fc.Operator + "|" + fc.Value
}

// ParseFilterCriteria parses a semicolon-joined criteria string. Each triple
// is independently parseable; an empty string yields no criteria. A triple
// with a missing field or unknown operator is an error.
func ParseFilterCriteria(s string) ([]FilterCriterion, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var criteria []FilterCriterion
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Value may itself contain pipes; only the first two split.
		pieces := strings.SplitN(part, "|", 3)
		if len(pieces) < 2 {
			return nil, fmt.Errorf("malformed filter criterion %q", part)
		}
		fc := FilterCriterion{
			Field:    strings.TrimSpace(pieces[0]),
			Operator: strings.TrimSpace(pieces[1]),
		}
		if len(pieces) == 3 {
			fc.Value = pieces[2]
		}
		if fc.Field == "" {
			return nil, fmt.Errorf("filter criterion %q has no field", part)
		}
		if !KnownOperator(fc.Operator) {
			return nil, fmt.Errorf("unknown filter operator %q", fc.Operator)
		}
		criteria = append(criteria, fc)
	}
	return criteria, nil
}

// JoinFilterCriteria serializes criteria to the semicolon-joined form.
func JoinFilterCriteria(criteria []FilterCriterion) string {
	parts := make([]string, len(criteria))
	for i, fc := range criteria {
		parts[i] = fc.String()
	}
	return strings.Join(parts, ";")
}
