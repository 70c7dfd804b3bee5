package seq_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchExecutor_Execute(t *testing.T) {
	t.Parallel()

	t.Run("results keep input order", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient(reply(`{"id":"x"}`), reply(`{"id":"x"}`), failure(seq.NewHTTPError(409, nil, "")))

		operations := seq.NewBatchBuilder().
			AddCreateAccount("acct", seq.NewAccount().AddKeyID("k1")).
			AddCreateFlavor("flavor", seq.NewFlavor().SetID("usd").AddKeyID("k1")).
			AddTagUpdate("tags", seq.UpdateAccountTags().ForID("a")).
			Build()

		executor := seq.NewBatchExecutor(client, 1)

		results, err := executor.Execute(context.Background(), operations)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "acct", results[0].ID)
		assert.Equal(t, "flavor", results[1].ID)
		assert.Equal(t, "tags", results[2].ID)

		failed := seq.FailedResults(results)
		require.Len(t, failed, 1)
		assert.Equal(t, "tags", failed[0].ID)
		assert.True(t, seq.IsApplication(failed[0].Error))
	})

	t.Run("concurrency is bounded", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32

		builder := seq.NewBatchBuilder()
		for range 10 {
			builder.AddOperation(seq.BatchOperation{
				ID: "op",
				Run: func(ctx context.Context, client seq.Client) (interface{}, error) {
					current := running.Add(1)
					defer running.Add(-1)

					for {
						old := peak.Load()
						if current <= old || peak.CompareAndSwap(old, current) {
							break
						}
					}

					time.Sleep(5 * time.Millisecond)

					return nil, nil
				},
			})
		}

		results, err := seq.NewBatchExecutor(newFakeClient(), 3).Execute(context.Background(), builder.Build())
		require.NoError(t, err)
		assert.Empty(t, seq.FailedResults(results))
		assert.LessOrEqual(t, peak.Load(), int32(3))
	})

	t.Run("callback and timeout", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		executor := seq.NewBatchExecutor(newFakeClient(), 0)
		executor.SetTimeout(5 * time.Millisecond)

		results, err := executor.Execute(context.Background(), []seq.BatchOperation{{
			ID: "slow",
			Run: func(ctx context.Context, client seq.Client) (interface{}, error) {
				<-ctx.Done()

				return nil, ctx.Err()
			},
			Callback: func(result *seq.BatchResult) {
				calls.Add(1)
			},
		}})
		require.NoError(t, err)
		require.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing run", func(t *testing.T) {
		t.Parallel()

		results, err := seq.NewBatchExecutor(newFakeClient(), 1).Execute(context.Background(), []seq.BatchOperation{{ID: "empty"}})
		require.NoError(t, err)
		require.ErrorIs(t, results[0].Error, seq.ErrOperationRequired)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := seq.NewBatchExecutor(newFakeClient(), 1).Execute(ctx, seq.NewBatchBuilder().
			AddTransaction("tx", seq.NewTransaction().Issue(seq.Issue{FlavorID: "usd", Amount: 1, DestinationAccountID: "a"})).
			Build())
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, results[0].Error, context.Canceled)
	})
}
