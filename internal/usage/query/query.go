// Package query composes the parameterized SQL used to aggregate usage rows
// inside the database.
package query

import (
	"fmt"
	"strings"
	"time"

	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
)

// Query is a SQL fragment together with its bind arguments, in placeholder order.
type Query struct {
	SQL  string
	Args []any
}

func Q(sql string, args ...any) Query {
	return Query{SQL: sql, Args: args}
}

// Concat joins fragments with a space, keeping argument order aligned with placeholders.
func Concat(parts ...Query) Query {
	sqls := make([]string, 0, len(parts))
	var args []any
	for _, p := range parts {
		sqls = append(sqls, p.SQL)
		args = append(args, p.Args...)
	}
	return Query{SQL: strings.Join(sqls, " "), Args: args}
}

// Window restricts rows by usage_date.
type Window struct {
	From      time.Time
	To        time.Time
	Inclusive bool
	bounded   bool
}

// Day covers [d 00:00 UTC, d+1 00:00 UTC).
func Day(d time.Time) Window {
	start := usagedomain.StartOfDay(d)
	return Window{From: start, To: start.AddDate(0, 0, 1), bounded: true}
}

// Between covers [from, to] inclusive on both ends.
func Between(from, to time.Time) Window {
	return Window{From: from.UTC(), To: to.UTC(), Inclusive: true, bounded: true}
}

// All applies no date restriction.
func All() Window {
	return Window{}
}

// Predicate renders the window against alias.usage_date.
func (w Window) Predicate(alias string) Query {
	if !w.bounded {
		return Q("1 = 1")
	}
	column := "usage_date"
	if alias != "" {
		column = alias + ".usage_date"
	}
	upper := "<"
	if w.Inclusive {
		upper = "<="
	}
	return Q(fmt.Sprintf("%s >= ? AND %s %s ?", column, column, upper), w.From, w.To)
}

// Source selects the raw or aggregated table of a kind.
type Source int

const (
	Raw Source = iota
	Aggregated
)

func (s Source) table(kind usagedomain.Kind) string {
	if s == Aggregated {
		return kind.AggregateTable()
	}
	return kind.RawTable()
}

// Column selects which value is summed.
type Column int

const (
	Quantity Column = iota
	Price
)

func (c Column) name(kind usagedomain.Kind) string {
	if c == Price {
		return "price"
	}
	return kind.QuantityColumn()
}

// Outer keys a correlated subquery to the enclosing row.
type Outer func(alias string) string

// ByIdentity matches rows whose normalized identity equals that of the outer
// usage-shaped row named outerAlias.
func ByIdentity(outerAlias string) Outer {
	return func(alias string) string {
		return fmt.Sprintf("%s = %s AND %s = %s",
			usagedomain.IdentityFieldExpr(alias), usagedomain.IdentityFieldExpr(outerAlias),
			usagedomain.IdentityValueExpr(alias), usagedomain.IdentityValueExpr(outerAlias),
		)
	}
}

// ByCarrier matches rows whose carrier foreign key equals ref, typically a
// subscription table's id column.
func ByCarrier(carrier subscriptiondomain.Carrier, ref string) Outer {
	return func(alias string) string {
		return fmt.Sprintf("%s.%s = %s", alias, usagedomain.FieldFor(carrier).Column(), ref)
	}
}

const innerAlias = "u"

// CorrelatedSum is a parenthesized scalar subquery summing column over the
// rows of kind/source that match outer within window. Missing rows sum to zero.
func CorrelatedSum(kind usagedomain.Kind, source Source, column Column, outer Outer, window Window) Query {
	return Concat(
		Q(fmt.Sprintf("(SELECT COALESCE(SUM(%s.%s), 0) FROM %s %s WHERE %s AND",
			innerAlias, column.name(kind), source.table(kind), innerAlias, outer(innerAlias))),
		window.Predicate(innerAlias),
		Q(")"),
	)
}

// Aggregation groups raw rows of one kind by normalized identity.
type Aggregation struct {
	Kind   usagedomain.Kind
	Window Window
	// PositiveOnly drops groups whose summed quantity is not strictly positive.
	PositiveOnly bool
}

// Build renders columns id_field, id_value, usage_total and price_total.
func (a Aggregation) Build() Query {
	field := usagedomain.IdentityFieldExpr(innerAlias)
	value := usagedomain.IdentityValueExpr(innerAlias)
	quantity := innerAlias + "." + a.Kind.QuantityColumn()

	q := Concat(
		Q(fmt.Sprintf(`SELECT %s AS id_field, %s AS id_value,
			COALESCE(SUM(%s), 0) AS usage_total,
			ROUND(COALESCE(SUM(%s.price), 0), 2) AS price_total
			FROM %s %s WHERE`, field, value, quantity, innerAlias, a.Kind.RawTable(), innerAlias)),
		a.Window.Predicate(innerAlias),
		Q(fmt.Sprintf("GROUP BY %s, %s", field, value)),
	)
	if a.PositiveOnly {
		q = Concat(q, Q(fmt.Sprintf("HAVING SUM(%s) > 0", quantity)))
	}
	return Concat(q, Q("ORDER BY id_field, id_value"))
}

// MissingAggregates lists identities with raw rows on day that have no
// aggregate row for that day yet.
func MissingAggregates(kind usagedomain.Kind, day time.Time) Query {
	window := Day(day)
	const agg = "g"
	return Concat(
		Q(fmt.Sprintf("SELECT DISTINCT %s AS id_field, %s AS id_value FROM %s %s WHERE",
			usagedomain.IdentityFieldExpr(innerAlias), usagedomain.IdentityValueExpr(innerAlias),
			kind.RawTable(), innerAlias)),
		window.Predicate(innerAlias),
		Q(fmt.Sprintf("AND NOT EXISTS (SELECT 1 FROM %s %s WHERE %s.usage_date = ? AND %s)",
			kind.AggregateTable(), agg, agg, ByIdentity(innerAlias)(agg)), window.From),
	)
}

// Accumulate adds the day's raw sums onto existing aggregate rows of that day.
// Rows without positive raw quantity or price are left untouched.
func Accumulate(kind usagedomain.Kind, day time.Time) Query {
	window := Day(day)
	table := kind.AggregateTable()
	column := kind.QuantityColumn()
	outer := ByIdentity(table)
	quantity := CorrelatedSum(kind, Raw, Quantity, outer, window)
	price := CorrelatedSum(kind, Raw, Price, outer, window)

	return Concat(
		Q(fmt.Sprintf("UPDATE %s SET %s = %s +", table, column, column)), quantity,
		Q(", price = ROUND(price +"), price,
		Q(", 2) WHERE usage_date = ? AND (", window.From), quantity,
		Q("> 0 OR"), price,
		Q("> 0)"),
	)
}

// DeleteRaw removes every raw row of kind dated on day.
func DeleteRaw(kind usagedomain.Kind, day time.Time) Query {
	return Concat(
		Q(fmt.Sprintf("DELETE FROM %s WHERE", kind.RawTable())),
		Day(day).Predicate(""),
	)
}
