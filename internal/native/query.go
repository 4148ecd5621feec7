package native

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Operator represents a native attribute comparison
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpContains
	OpStartsWith
	OpEndsWith
	OpIsNull
	OpIsNotNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "eq"
	case OpNotEqual:
		return "neq"
	case OpContains:
		return "contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpIsNull:
		return "isNull"
	case OpIsNotNull:
		return "notNull"
	default:
		return "unknown"
	}
}

// Condition compares one attribute against a value
type Condition struct {
	Attribute string      `json:"attributeName"`
	Operator  Operator    `json:"operator"`
	Value     interface{} `json:"attributeValue,omitempty"`
}

// PredicateGroup combines conditions and nested groups with AND or OR
type PredicateGroup struct {
	Conditions []*Condition      `json:"criterion,omitempty"`
	Groups     []*PredicateGroup `json:"groups,omitempty"`
	Or         bool              `json:"or"`
}

// NewPredicateGroup creates a new predicate group
func NewPredicateGroup(or bool) *PredicateGroup {
	return &PredicateGroup{
		Conditions: make([]*Condition, 0),
		Groups:     make([]*PredicateGroup, 0),
		Or:         or,
	}
}

// AddCondition adds a condition to the group
func (pg *PredicateGroup) AddCondition(cond *Condition) {
	pg.Conditions = append(pg.Conditions, cond)
}

// AddGroup adds a nested group
func (pg *PredicateGroup) AddGroup(group *PredicateGroup) {
	pg.Groups = append(pg.Groups, group)
}

// Empty reports whether the group has nothing to evaluate
func (pg *PredicateGroup) Empty() bool {
	return pg == nil || (len(pg.Conditions) == 0 && len(pg.Groups) == 0)
}

// Evaluate tests the group against a set of attribute values. An empty group matches.
func (pg *PredicateGroup) Evaluate(attrs map[string]interface{}) bool {
	if pg.Empty() {
		return true
	}

	results := make([]bool, 0, len(pg.Conditions)+len(pg.Groups))
	for _, cond := range pg.Conditions {
		results = append(results, cond.Evaluate(attrs))
	}
	for _, group := range pg.Groups {
		if group.Empty() {
			continue
		}
		results = append(results, group.Evaluate(attrs))
	}

	if pg.Or {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// String renders the group for logs
func (pg *PredicateGroup) String() string {
	if pg.Empty() {
		return ""
	}
	parts := make([]string, 0)
	for _, c := range pg.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Attribute, c.Operator, c.Value))
	}
	for _, g := range pg.Groups {
		if s := g.String(); s != "" {
			parts = append(parts, "("+s+")")
		}
	}
	joiner := " AND "
	if pg.Or {
		joiner = " OR "
	}
	return strings.Join(parts, joiner)
}

// Evaluate tests the condition against a set of attribute values. Collection
// attributes match when any element matches.
func (c *Condition) Evaluate(attrs map[string]interface{}) bool {
	actual, present := attrs[c.Attribute]
	switch c.Operator {
	case OpIsNull:
		return !present || actual == nil
	case OpIsNotNull:
		return present && actual != nil
	}
	if !present || actual == nil {
		return c.Operator == OpNotEqual
	}

	if list, ok := actual.([]interface{}); ok {
		for _, elem := range list {
			if compare(c.Operator, elem, c.Value) {
				return c.Operator != OpNotEqual
			}
		}
		return c.Operator == OpNotEqual
	}
	return compare(c.Operator, actual, c.Value)
}

func compare(op Operator, actual, expected interface{}) bool {
	switch op {
	case OpEqual:
		return ValuesEqual(actual, expected)
	case OpNotEqual:
		return !ValuesEqual(actual, expected)
	}

	as, aok := actual.(string)
	es, eok := expected.(string)
	if !aok || !eok {
		return false
	}
	switch op {
	case OpContains:
		return strings.Contains(as, es)
	case OpStartsWith:
		return strings.HasPrefix(as, es)
	case OpEndsWith:
		return strings.HasSuffix(as, es)
	default:
		return false
	}
}

// ValuesEqual compares two attribute values, treating every numeric representation
// as a float64
func ValuesEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ContainsText reports whether any string attribute value contains text,
// ignoring case
func ContainsText(attrs map[string]interface{}, text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	for _, v := range attrs {
		switch tv := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(tv), needle) {
				return true
			}
		case []interface{}:
			for _, elem := range tv {
				if s, ok := elem.(string); ok && strings.Contains(strings.ToLower(s), needle) {
					return true
				}
			}
		}
	}
	return false
}

// SearchKind selects whether a search returns entities or relationships
type SearchKind int

const (
	SearchEntities SearchKind = iota
	SearchRelationships
)

// StructuredQuery is a query scoped to one type, optionally including its subtypes
type StructuredQuery struct {
	Kind            SearchKind      `json:"kind"`
	TypeName        string          `json:"typeName"`
	IncludeSubTypes bool            `json:"includeSubTypes"`
	Where           *PredicateGroup `json:"where,omitempty"`
	Classification  string          `json:"classification,omitempty"`
	ExcludeDeleted  bool            `json:"excludeDeletedEntities"`
	Offset          int             `json:"offset"`
	Limit           int             `json:"limit"`
}

// SearchParameters is an untyped attribute and full-text search across all instances
type SearchParameters struct {
	Kind           SearchKind      `json:"kind"`
	TypeName       string          `json:"typeName,omitempty"`
	Classification string          `json:"classification,omitempty"`
	Query          string          `json:"query,omitempty"`
	Where          *PredicateGroup `json:"entityFilters,omitempty"`
	ExcludeDeleted bool            `json:"excludeDeletedEntities"`
	Offset         int             `json:"offset"`
	Limit          int             `json:"limit"`
}

// SearchResult holds whichever instance kind the search asked for
type SearchResult struct {
	Entities      []*Entity       `json:"entities,omitempty"`
	Relationships []*Relationship `json:"relationships,omitempty"`
}

// Window applies offset and limit to n results, returning slice bounds.
// A limit of zero means no limit.
func Window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return n, n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

// SortEntities orders entities oldest first, breaking ties by guid
func SortEntities(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].CreateTime.Equal(entities[j].CreateTime) {
			return entities[i].GUID < entities[j].GUID
		}
		return entities[i].CreateTime.Before(entities[j].CreateTime)
	})
}

// SortRelationships orders relationships oldest first, breaking ties by guid
func SortRelationships(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].CreateTime.Equal(rels[j].CreateTime) {
			return rels[i].GUID < rels[j].GUID
		}
		return rels[i].CreateTime.Before(rels[j].CreateTime)
	})
}
