package seq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyIDs(keys []seq.Key) []string {
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key.ID)
	}

	return ids
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestItems_Next(t *testing.T) {
	t.Parallel()

	t.Run("empty intermediate page fetches the next", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(
			reply(`{"items":[],"cursor":"c1","last_page":false}`),
			reply(`{"items":[{"id":"a"}],"cursor":"c2","last_page":true}`),
		)

		items := seq.ListKeys().GetIterable(client)

		key, err := items.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", key.ID)
		assert.Equal(t, 2, items.PagesFetched())

		_, err = items.Next(context.Background())
		require.ErrorIs(t, err, seq.ErrNoMoreItems)
		assert.Equal(t, 2, client.callCount())
	})

	t.Run("last page stops after its items", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(reply(`{"items":[{"id":"a"},{"id":"b"}],"cursor":"end","last_page":true}`))

		all, err := seq.ListKeys().GetIterable(client).All(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keyIDs(all))
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("empty last page yields nothing", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(reply(`{"items":[],"cursor":"end","last_page":true}`))

		all, err := seq.ListKeys().GetIterable(client).All(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("continuations replay the cursor", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(
			reply(`{"items":[{"id":"a"}],"cursor":"c1","last_page":false}`),
			reply(`{"items":[{"id":"b"}],"cursor":"c2","last_page":true}`),
		)

		items := seq.ListKeys().WithFilter("id=$1").AddFilterParam("a").GetIterable(client)

		_, err := items.All(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "c2", items.Cursor())
		assert.JSONEq(t, `{"cursor":"c1"}`, client.payloads()[1])
	})

	t.Run("resume at cursor", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(reply(`{"items":[{"id":"z"}],"cursor":"c9","last_page":true}`))

		items := seq.ListKeys().GetIterableAt(client, "c8")
		assert.Empty(t, items.Cursor())

		all, err := items.All(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"z"}, keyIDs(all))
		assert.JSONEq(t, `{"cursor":"c8"}`, client.payloads()[0])
	})

	t.Run("fetch error is latched", func(t *testing.T) {
		t.Parallel()

		errBoom := seq.NewConnectivityError(errors.New("connection reset"))
		client := newFakeClient(
			reply(`{"items":[{"id":"a"}],"cursor":"c1","last_page":false}`),
			failure(errBoom),
			reply(`{"items":[{"id":"b"}],"cursor":"c2","last_page":true}`),
		)

		items := seq.ListKeys().GetIterable(client)

		_, err := items.Next(context.Background())
		require.NoError(t, err)

		_, err = items.Next(context.Background())
		require.ErrorIs(t, err, errBoom)

		_, again := items.Next(context.Background())
		require.ErrorIs(t, again, errBoom)
		require.ErrorIs(t, items.Err(), errBoom)
		assert.Equal(t, 2, client.callCount())
	})
}

func TestItems_MissingCursor(t *testing.T) {
	t.Parallel()

	t.Run("intermediate page without cursor fails instead of restarting", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(
			reply(`{"items":[{"id":"a"}],"cursor":"","last_page":false}`),
			reply(`{"items":[{"id":"everything"}],"cursor":"c2","last_page":true}`),
		)

		items := seq.ListKeys().WithFilter("tags.type=$1").AddFilterParam("vip").GetIterable(client)

		key, err := items.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", key.ID)

		_, err = items.Next(context.Background())
		require.ErrorIs(t, err, seq.ErrMissingCursor)

		_, again := items.Next(context.Background())
		require.ErrorIs(t, again, seq.ErrMissingCursor)
		require.ErrorIs(t, items.Err(), seq.ErrMissingCursor)
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("resume from empty cursor sends nothing", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(reply(`{"items":[{"id":"a"}],"cursor":"c1","last_page":true}`))

		_, err := seq.ListKeys().GetIterableAt(client, "").All(context.Background())
		require.ErrorIs(t, err, seq.ErrMissingCursor)
		assert.Zero(t, client.callCount())
	})
}

func TestItems_ForEach(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	client := newFakeClient(
		reply(`{"items":[{"id":"a"},{"id":"b"}],"cursor":"c1","last_page":false}`),
		reply(`{"items":[{"id":"c"}],"cursor":"c2","last_page":true}`),
	)

	var seen []string

	err := seq.ListKeys().GetIterable(client).ForEach(context.Background(), func(key seq.Key) error {
		seen = append(seen, key.ID)
		if key.ID == "b" {
			return errStop
		}

		return nil
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 1, client.callCount())
}

func TestItems_Seq(t *testing.T) {
	t.Parallel()

	t.Run("range over all items", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(
			reply(`{"items":[{"id":"a"}],"cursor":"c1","last_page":false}`),
			reply(`{"items":[{"id":"b"}],"cursor":"c2","last_page":true}`),
		)

		var seen []string

		for key, err := range seq.ListKeys().GetIterable(client).Seq(context.Background()) {
			require.NoError(t, err)

			seen = append(seen, key.ID)
		}

		assert.Equal(t, []string{"a", "b"}, seen)
	})

	t.Run("break stops fetching", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(
			reply(`{"items":[{"id":"a"}],"cursor":"c1","last_page":false}`),
			reply(`{"items":[{"id":"b"}],"cursor":"c2","last_page":true}`),
		)

		for range seq.ListKeys().GetIterable(client).Seq(context.Background()) {
			break
		}

		assert.Equal(t, 1, client.callCount())
	})

	t.Run("error is yielded once", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(failure(seq.NewHTTPError(503, nil, "")))

		var errs []error

		for _, err := range seq.ListKeys().GetIterable(client).Seq(context.Background()) {
			errs = append(errs, err)
		}

		require.Len(t, errs, 1)
		assert.True(t, seq.IsConnectivity(errs[0]))
	})
}
