package main

import (
	"context"
	"errors"
	"testing"
	"time"

	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/internal/usage/rollup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePopulator struct {
	calls    []string
	allCalls int
	err      error
}

func (f *fakePopulator) Populate(_ context.Context, kind usagedomain.Kind, date time.Time) (rollup.Result, error) {
	f.calls = append(f.calls, string(kind))
	if f.err != nil {
		return rollup.Result{}, f.err
	}
	return rollup.Result{Kind: kind, Date: date, Created: 1}, nil
}

func (f *fakePopulator) PopulateAll(_ context.Context, date time.Time) ([]rollup.Result, error) {
	f.allCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []rollup.Result{
		{Kind: usagedomain.KindData, Date: date},
		{Kind: usagedomain.KindVoice, Date: date},
	}, nil
}

func TestParseKind(t *testing.T) {
	_, all, err := parseKind("ALL")
	require.NoError(t, err)
	assert.True(t, all)

	kind, all, err := parseKind("voice")
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, usagedomain.KindVoice, kind)

	_, _, err = parseKind("sms")
	assert.Error(t, err)
}

func TestPopulateAllUsesPopulateAll(t *testing.T) {
	svc := &fakePopulator{}
	date := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	results, err := populate(context.Background(), svc, "", true, date)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.allCalls)
	assert.Empty(t, svc.calls)
	assert.Len(t, results, 2)
}

func TestPopulateSingleKind(t *testing.T) {
	svc := &fakePopulator{}
	date := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	results, err := populate(context.Background(), svc, usagedomain.KindData, false, date)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.allCalls)
	assert.Equal(t, []string{"data"}, svc.calls)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Created)
}

func TestPopulateWrapsErrors(t *testing.T) {
	svc := &fakePopulator{err: usagedomain.ErrRollupInProgress}
	date := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	_, err := populate(context.Background(), svc, usagedomain.KindVoice, false, date)
	if !errors.Is(err, usagedomain.ErrRollupInProgress) {
		t.Fatalf("expected rollup in progress, got %v", err)
	}
	assert.Contains(t, err.Error(), "2026-10-18")
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))

	got, err := parseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2026-10-18", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("18/10/2026", now)
	assert.Error(t, err)
}
