package ledgertest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	errInvalidFilter = errors.New("invalid filter")
	clausePattern    = regexp.MustCompile(`^([a-z_]+(?:\.[A-Za-z0-9_]+)*)\s*=\s*\$([0-9]+)$`)
	andPattern       = regexp.MustCompile(`(?i)\s+AND\s+`)
)

type clause struct {
	path  []string
	param int
}

type filter struct {
	clauses []clause
	params  []interface{}
}

// parseFilter accepts conjunctions of "field=$N" clauses, where field is a
// top level attribute or a dotted tag path such as "tags.type".
func parseFilter(expr string, params []interface{}) (*filter, error) {
	parsed := &filter{params: params}
	if strings.TrimSpace(expr) == "" {
		return parsed, nil
	}

	for _, part := range andPattern.Split(strings.TrimSpace(expr), -1) {
		match := clausePattern.FindStringSubmatch(strings.TrimSpace(part))
		if match == nil {
			return nil, fmt.Errorf("%w: %q", errInvalidFilter, part)
		}

		index, _ := strconv.Atoi(match[2])
		if index < 1 || index > len(params) {
			return nil, fmt.Errorf("%w: parameter $%d not provided", errInvalidFilter, index)
		}

		parsed.clauses = append(parsed.clauses, clause{path: strings.Split(match[1], "."), param: index - 1})
	}

	return parsed, nil
}

func (f *filter) matches(item interface{}) bool {
	if len(f.clauses) == 0 {
		return true
	}

	data, err := json.Marshal(item)
	if err != nil {
		return false
	}

	var doc map[string]interface{}

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return false
	}

	for _, c := range f.clauses {
		value, ok := lookup(doc, c.path)
		if !ok || !equal(value, f.params[c.param]) {
			return false
		}
	}

	return true
}

func lookup(doc map[string]interface{}, path []string) (interface{}, bool) {
	var current interface{} = doc

	for _, segment := range path {
		object, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}

		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// equal compares JSON values, treating numbers by value.
func equal(a, b interface{}) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}

	right, err := json.Marshal(b)
	if err != nil {
		return false
	}

	return string(left) == string(right)
}
