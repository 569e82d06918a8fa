package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"inditrade/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "account.json")
	st, err := NewSnapshotStore(path)
	require.NoError(t, err)

	_, err = st.Load(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Save(ctx, []byte(`{"balance":"1"}`)))
	require.NoError(t, st.Save(ctx, []byte(`{"balance":"2"}`)))
	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"balance":"2"}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, st.Save(cancelled, []byte(`{}`)), context.Canceled)
}

func TestEventStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	es, err := NewEventStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = es.Close() })

	base := time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC)
	for i, typ := range []store.EventType{store.EventAccountCreated, store.EventOrderExecuted, store.EventAccountReset} {
		require.NoError(t, es.Append(ctx, store.Event{
			ID:        string(rune('a' + i)),
			Type:      typ,
			AccountID: "user_1",
			Payload:   json.RawMessage(`{"n":1}`),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := es.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, store.EventAccountReset, all[0].Type)
	assert.JSONEq(t, `{"n":1}`, string(all[0].Payload))

	two, err := es.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, []string{two[0].ID, two[1].ID})

	require.NoError(t, es.Close())
	assert.Error(t, es.Append(ctx, store.Event{ID: "z"}))

	reopened, err := NewEventStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	again, err := reopened.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", again[0].ID)
}
