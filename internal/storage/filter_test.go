package storage

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestTextMatch(t *testing.T) {
	sql, args := TextMatch{Column: "g.name", Term: "Elden"}.SQL()

	assert.Equal(t, "LOWER(g.name) LIKE ?", sql)
	assert.Equal(t, []interface{}{"%elden%"}, args)
}

func TestSetMembership(t *testing.T) {
	sql, args := SetMembership{Column: "r.tier", Values: []string{"platinum", "gold"}}.SQL()

	assert.Equal(t, "r.tier IN (?, ?)", sql)
	assert.Equal(t, []interface{}{"platinum", "gold"}, args)
}

func TestRangeBound(t *testing.T) {
	min := 10.0
	max := 50.0

	tests := []struct {
		name     string
		bound    RangeBound
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "both bounds",
			bound:    RangeBound{Expr: "MIN(p.price)", Min: &min, Max: &max},
			wantSQL:  "MIN(p.price) >= ? AND MIN(p.price) <= ?",
			wantArgs: []interface{}{10.0, 50.0},
		},
		{
			name:     "min only",
			bound:    RangeBound{Expr: "MIN(p.price)", Min: &min},
			wantSQL:  "MIN(p.price) >= ?",
			wantArgs: []interface{}{10.0},
		},
		{
			name:     "max only",
			bound:    RangeBound{Expr: "MIN(p.price)", Max: &max},
			wantSQL:  "MIN(p.price) <= ?",
			wantArgs: []interface{}{50.0},
		},
		{
			name:    "no bounds is a tautology",
			bound:   RangeBound{Expr: "MIN(p.price)"},
			wantSQL: "1 = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.bound.SQL()
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestComposePredicates(t *testing.T) {
	min := 5.0
	sql, args := composePredicates([]Predicate{
		TextMatch{Column: "g.name", Term: "dota"},
		RangeBound{Expr: "MIN(p.price)", Min: &min},
	})

	assert.Equal(t, "(LOWER(g.name) LIKE ?) AND (MIN(p.price) >= ?)", sql)
	assert.Equal(t, []interface{}{"%dota%", 5.0}, args)
}

func TestComposePredicates_Empty(t *testing.T) {
	sql, args := composePredicates(nil)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

// Property: a predicate never interpolates its inputs into the SQL text; the
// rendered clause stays fixed while values travel as bound arguments.
func TestPredicates_ValuesNeverReachSQLProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("text match keeps the term out of the clause", prop.ForAll(
		func(term string) bool {
			sql, args := TextMatch{Column: "g.name", Term: term}.SQL()
			if sql != "LOWER(g.name) LIKE ?" {
				return false
			}
			return len(args) == 1
		},
		gen.AnyString(),
	))

	properties.Property("set membership arity matches values", prop.ForAll(
		func(values []string) bool {
			if len(values) == 0 {
				return true
			}
			sql, args := SetMembership{Column: "r.tier", Values: values}.SQL()
			return strings.Count(sql, "?") == len(values) && len(args) == len(values)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
