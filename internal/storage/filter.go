package storage

import (
	"strings"
)

// Predicate is one filter condition rendered as parameterized SQL. Filters
// are composed from this closed set of predicate types rather than string
// concatenation, so every clause is bound and injection-safe by construction.
type Predicate interface {
	SQL() (string, []interface{})
}

// TextMatch matches rows whose column contains the term, case-insensitively.
type TextMatch struct {
	Column string
	Term   string
}

// SQL renders the predicate
func (p TextMatch) SQL() (string, []interface{}) {
	return "LOWER(" + p.Column + ") LIKE ?", []interface{}{"%" + strings.ToLower(p.Term) + "%"}
}

// SetMembership matches rows whose column equals one of the values.
type SetMembership struct {
	Column string
	Values []string
}

// SQL renders the predicate
func (p SetMembership) SQL() (string, []interface{}) {
	placeholders := make([]string, len(p.Values))
	args := make([]interface{}, len(p.Values))
	for i, v := range p.Values {
		placeholders[i] = "?"
		args[i] = v
	}
	return p.Column + " IN (" + strings.Join(placeholders, ", ") + ")", args
}

// RangeBound constrains an expression to an inclusive range. Either bound may
// be nil. Comparing a NULL expression fails both bounds, which is what
// excludes unpriced games from price-bounded views.
type RangeBound struct {
	Expr string
	Min  *float64
	Max  *float64
}

// SQL renders the predicate
func (p RangeBound) SQL() (string, []interface{}) {
	var parts []string
	var args []interface{}

	if p.Min != nil {
		parts = append(parts, p.Expr+" >= ?")
		args = append(args, *p.Min)
	}
	if p.Max != nil {
		parts = append(parts, p.Expr+" <= ?")
		args = append(args, *p.Max)
	}
	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), args
}

// composePredicates joins predicates with AND, returning the combined clause
// and its arguments. An empty predicate list yields an empty clause.
func composePredicates(preds []Predicate) (string, []interface{}) {
	if len(preds) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(preds))
	var args []interface{}
	for _, p := range preds {
		sql, a := p.SQL()
		clauses = append(clauses, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(clauses, " AND "), args
}
