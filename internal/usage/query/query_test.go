package query

import (
	"strings"
	"testing"
	"time"

	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/stretchr/testify/assert"
)

func TestDayWindowIsHalfOpen(t *testing.T) {
	day := time.Date(2024, 3, 9, 17, 45, 0, 0, time.FixedZone("X", 3*3600))
	w := Day(day)

	q := w.Predicate("u")
	assert.Equal(t, "u.usage_date >= ? AND u.usage_date < ?", q.SQL)
	assert.Equal(t, []any{
		time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}, q.Args)
}

func TestBetweenWindowIsClosed(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := Between(from, from).Predicate("")
	assert.Equal(t, "usage_date >= ? AND usage_date <= ?", q.SQL)
	assert.Len(t, q.Args, 2)
}

func TestAllWindowHasNoArgs(t *testing.T) {
	q := All().Predicate("u")
	assert.Equal(t, "1 = 1", q.SQL)
	assert.Empty(t, q.Args)
}

func TestConcatKeepsArgumentOrder(t *testing.T) {
	q := Concat(Q("a = ?", 1), Q("AND b = ? AND c = ?", 2, 3))
	assert.Equal(t, "a = ? AND b = ? AND c = ?", q.SQL)
	assert.Equal(t, []any{1, 2, 3}, q.Args)
}

func TestCorrelatedSumByCarrier(t *testing.T) {
	q := CorrelatedSum(usagedomain.KindVoice, Aggregated, Price, ByCarrier(subscriptiondomain.CarrierSprint, "s.id"), All())
	assert.Equal(t,
		"(SELECT COALESCE(SUM(u.price), 0) FROM agg_voice_usage u WHERE u.sprint_subscription_id = s.id AND 1 = 1 )",
		q.SQL,
	)
	assert.Empty(t, q.Args)
}

func TestAggregationBuild(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := Aggregation{Kind: usagedomain.KindData, Window: Between(from, from), PositiveOnly: true}.Build()

	assert.Contains(t, q.SQL, "FROM data_usage_records u")
	assert.Contains(t, q.SQL, "COALESCE(SUM(u.kilobytes_used), 0) AS usage_total")
	assert.Contains(t, q.SQL, "HAVING SUM(u.kilobytes_used) > 0")
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
}

func TestAccumulatePlaceholdersMatchArgs(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := Accumulate(usagedomain.KindData, day)

	assert.True(t, strings.HasPrefix(q.SQL, "UPDATE agg_data_usage SET kilobytes_used = kilobytes_used +"))
	assert.Contains(t, q.SQL, "agg_data_usage.att_subscription_id")
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
	// 4 subqueries with 2 window bounds each, plus the aggregate date.
	assert.Len(t, q.Args, 9)
	assert.Equal(t, day, q.Args[4])
}

func TestMissingAggregatesAndDelete(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	missing := MissingAggregates(usagedomain.KindVoice, day)
	assert.Contains(t, missing.SQL, "FROM voice_usage_records u")
	assert.Contains(t, missing.SQL, "NOT EXISTS (SELECT 1 FROM agg_voice_usage g WHERE g.usage_date = ?")
	assert.Equal(t, strings.Count(missing.SQL, "?"), len(missing.Args))

	del := DeleteRaw(usagedomain.KindVoice, day)
	assert.Equal(t, "DELETE FROM voice_usage_records WHERE usage_date >= ? AND usage_date < ?", del.SQL)
	assert.Len(t, del.Args, 2)
}
