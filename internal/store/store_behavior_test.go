package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cypherspark/webhook-ingest/internal/core"
	"github.com/Cypherspark/webhook-ingest/internal/store"
)

// Behavior tests shared by both backends.

func msg(id, from, to string, ts time.Time, text string) core.Message {
	m := core.Message{MessageID: id, From: from, To: to, Ts: ts.UTC()}
	if text != "" {
		m.Text = &text
	}
	return m
}

func mustInsert(t *testing.T, s store.MessageStore, m core.Message) {
	t.Helper()
	outcome, err := s.Insert(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, store.OutcomeCreated, outcome)
}

func testInsertIdempotent(t *testing.T, s store.MessageStore) {
	ts := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	m := msg("m1", "+919876543210", "+14155550100", ts, "Hello")

	outcome, err := s.Insert(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, store.OutcomeCreated, outcome)

	outcome, err = s.Insert(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, store.OutcomeDuplicate, outcome)

	_, total, err := s.List(context.Background(), store.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func testInsertConcurrentSameID(t *testing.T, s store.MessageStore) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := msg("race", "+1000", "+2000", ts, "raced")

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, duplicate int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Insert(context.Background(), m)
			require.NoError(t, err)
			mu.Lock()
			if outcome == store.OutcomeCreated {
				created++
			} else {
				duplicate++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, created)
	require.Equal(t, n-1, duplicate)

	_, total, err := s.List(context.Background(), store.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func testOrderingDeterministic(t *testing.T, s store.MessageStore) {
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	// Inserted deliberately out of order; listing must sort by
	// (ts ASC, message_id ASC) regardless.
	mustInsert(t, s, msg("b", "+1", "+2", base.Add(time.Hour), ""))
	mustInsert(t, s, msg("c", "+1", "+2", base, ""))
	mustInsert(t, s, msg("a", "+1", "+2", base.Add(time.Hour), ""))
	mustInsert(t, s, msg("d", "+1", "+2", base.Add(2*time.Hour), ""))

	want := []string{"c", "a", "b", "d"}
	for i := 0; i < 3; i++ {
		page, total, err := s.List(context.Background(), store.ListQuery{})
		require.NoError(t, err)
		require.Equal(t, 4, total)
		got := make([]string, 0, len(page))
		for _, m := range page {
			got = append(got, m.MessageID)
		}
		require.Equal(t, want, got)
	}
}

func testPagination(t *testing.T, s store.MessageStore) {
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{"m01", "m02", "m03", "m04", "m05", "m06", "m07"}
	for i, id := range ids {
		mustInsert(t, s, msg(id, "+1", "+2", base.Add(time.Duration(i)*time.Minute), ""))
	}

	var seen []string
	for offset := 0; ; offset += 3 {
		page, total, err := s.List(context.Background(), store.ListQuery{Limit: 3, Offset: offset})
		require.NoError(t, err)
		require.Equal(t, len(ids), total)
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			seen = append(seen, m.MessageID)
		}
	}
	require.Equal(t, ids, seen)
}

func testFilters(t *testing.T, s store.MessageStore) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	mustInsert(t, s, msg("f1", "+111", "+900", base, "Hello World"))
	mustInsert(t, s, msg("f2", "+222", "+900", base.Add(time.Hour), "50% off today"))
	mustInsert(t, s, msg("f3", "+111", "+900", base.Add(2*time.Hour), "plain hello"))
	mustInsert(t, s, msg("f4", "+333", "+900", base.Add(3*time.Hour), ""))

	// from: exact match
	page, total, err := s.List(context.Background(), store.ListQuery{From: "+111"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "f1", page[0].MessageID)
	require.Equal(t, "f3", page[1].MessageID)

	// since: inclusive lower bound
	since := base.Add(time.Hour)
	_, total, err = s.List(context.Background(), store.ListQuery{Since: &since})
	require.NoError(t, err)
	require.Equal(t, 3, total)

	// q: case-insensitive substring
	page, total, err = s.List(context.Background(), store.ListQuery{Q: "HELLO"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "f1", page[0].MessageID)
	require.Equal(t, "f3", page[1].MessageID)

	// q: % is literal, not a wildcard
	page, total, err = s.List(context.Background(), store.ListQuery{Q: "50%"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "f2", page[0].MessageID)

	// combined filters AND together
	_, total, err = s.List(context.Background(), store.ListQuery{From: "+111", Q: "hello", Since: &since})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func testStats(t *testing.T, s store.MessageStore) {
	// Empty store first: zero counts, nil timestamps, empty slice.
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, st.TotalMessages)
	require.Equal(t, 0, st.SendersCount)
	require.NotNil(t, st.MessagesPerSender)
	require.Empty(t, st.MessagesPerSender)
	require.Nil(t, st.FirstMessageTs)
	require.Nil(t, st.LastMessageTs)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	mustInsert(t, s, msg("s1", "+30", "+9", base, ""))
	mustInsert(t, s, msg("s2", "+30", "+9", base.Add(time.Minute), ""))
	mustInsert(t, s, msg("s3", "+30", "+9", base.Add(2*time.Minute), ""))
	mustInsert(t, s, msg("s4", "+20", "+9", base.Add(3*time.Minute), ""))
	mustInsert(t, s, msg("s5", "+20", "+9", base.Add(4*time.Minute), ""))
	mustInsert(t, s, msg("s6", "+10", "+9", base.Add(5*time.Minute), ""))
	mustInsert(t, s, msg("s7", "+10", "+9", base.Add(6*time.Minute), ""))

	st, err = s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, st.TotalMessages)
	require.Equal(t, 3, st.SendersCount)
	// Count descending, ties broken by sender ascending.
	require.Equal(t, []core.SenderCount{
		{From: "+30", Count: 3},
		{From: "+10", Count: 2},
		{From: "+20", Count: 2},
	}, st.MessagesPerSender)
	require.NotNil(t, st.FirstMessageTs)
	require.NotNil(t, st.LastMessageTs)
	require.True(t, st.FirstMessageTs.Equal(base))
	require.True(t, st.LastMessageTs.Equal(base.Add(6*time.Minute)))
}

func testLimitClamping(t *testing.T, s store.MessageStore) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustInsert(t, s, msg("c1", "+1", "+2", base, ""))
	mustInsert(t, s, msg("c2", "+1", "+2", base.Add(time.Minute), ""))

	page, total, err := s.List(context.Background(), store.ListQuery{Limit: -5, Offset: -3})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, page, 1) // limit clamped to 1

	page, _, err = s.List(context.Background(), store.ListQuery{Limit: 100000})
	require.NoError(t, err)
	require.Len(t, page, 2) // limit clamped to MaxLimit, both fit
}
