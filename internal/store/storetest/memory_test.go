package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionLifecycle(t *testing.T) {
	st := NewMemoryStore()

	created, err := st.UpsertSubscription(context.Background(), 1, "cbr", "USD/RUB")
	require.NoError(t, err)
	require.True(t, created)

	created, err = st.UpsertSubscription(context.Background(), 1, "cbr", "USD/RUB")
	require.NoError(t, err)
	require.False(t, created)

	_, err = st.UpsertSubscription(context.Background(), 1, "xe", "EUR/USD")
	require.NoError(t, err)

	subs, err := st.ListSubscriptions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	// Insertion order is preserved.
	require.Equal(t, "cbr", subs[0].Provider)
	require.Equal(t, "xe", subs[1].Provider)
	require.NotEqual(t, subs[0].ID, subs[1].ID)

	deleted, err := st.DeleteSubscription(context.Background(), 1, "cbr", "USD/RUB")
	require.NoError(t, err)
	require.True(t, deleted)

	removed, err := st.DeleteAllSubscriptions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestCachedRateRoundTrip(t *testing.T) {
	st := NewMemoryStore()

	row, err := st.GetCachedRate(context.Background(), "cbr", "USD/RUB")
	require.NoError(t, err)
	require.Nil(t, row)

	at := time.Now().UTC()
	require.NoError(t, st.UpsertCachedRate(context.Background(), "cbr", "USD/RUB", []byte(`{"value":"91.5"}`), at))

	row, err = st.GetCachedRate(context.Background(), "cbr", "USD/RUB")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, []byte(`{"value":"91.5"}`), row.RateData)
	require.Equal(t, at, row.FetchedAt)

	// Upsert replaces in place.
	require.NoError(t, st.UpsertCachedRate(context.Background(), "cbr", "USD/RUB", []byte(`{"value":"92"}`), at.Add(time.Minute)))
	row, err = st.GetCachedRate(context.Background(), "cbr", "USD/RUB")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"value":"92"}`), row.RateData)
}

func TestUpsertUser(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.UpsertUser(context.Background(), 42, "alice"))
	require.NoError(t, st.UpsertUser(context.Background(), 42, "alice_renamed"))
	require.NoError(t, st.UpsertUser(context.Background(), 7, "bob"))
}
