package seq

import (
	"context"
	"fmt"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"golang.org/x/sync/errgroup"
)

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	ID       string
	Run      func(ctx context.Context, client Client) (interface{}, error)
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Data     interface{}
	Error    error
	Duration time.Duration
}

// BatchExecutor executes independent operations with bounded concurrency.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultBatchTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs operations and returns their results in input order. A failed
// operation does not stop the others; only cancellation of ctx is returned as
// an error, alongside the results gathered so far.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var group errgroup.Group

	group.SetLimit(b.concurrency)

	for index, operation := range operations {
		if ctx.Err() != nil {
			results[index] = BatchResult{ID: operation.ID, Error: ctx.Err()}

			continue
		}

		group.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}

			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}

	return results, nil
}

func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	if operation.Run == nil {
		result.Error = fmt.Errorf("%w for batch operation %s", ErrOperationRequired, operation.ID)

		return result
	}

	data, err := operation.Run(ctx, b.client)
	result.Success = err == nil
	result.Data = data
	result.Error = err

	return result
}

// FailedResults returns the results that did not succeed.
func FailedResults(results []BatchResult) []BatchResult {
	var failed []BatchResult

	for _, result := range results {
		if !result.Success {
			failed = append(failed, result)
		}
	}

	return failed
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddCreateAccount adds an account creation.
func (b *BatchBuilder) AddCreateAccount(id string, account *AccountBuilder) *BatchBuilder {
	return b.AddOperation(BatchOperation{
		ID: id,
		Run: func(ctx context.Context, client Client) (interface{}, error) {
			return account.Create(ctx, client)
		},
	})
}

// AddCreateFlavor adds a flavor definition.
func (b *BatchBuilder) AddCreateFlavor(id string, flavor *FlavorBuilder) *BatchBuilder {
	return b.AddOperation(BatchOperation{
		ID: id,
		Run: func(ctx context.Context, client Client) (interface{}, error) {
			return flavor.Create(ctx, client)
		},
	})
}

// AddTransaction adds a transaction submission.
func (b *BatchBuilder) AddTransaction(id string, transaction *TransactionBuilder) *BatchBuilder {
	return b.AddOperation(BatchOperation{
		ID: id,
		Run: func(ctx context.Context, client Client) (interface{}, error) {
			return transaction.Transact(ctx, client)
		},
	})
}

// AddTagUpdate adds a tag update.
func (b *BatchBuilder) AddTagUpdate(id string, update *TagUpdateBuilder) *BatchBuilder {
	return b.AddOperation(BatchOperation{
		ID: id,
		Run: func(ctx context.Context, client Client) (interface{}, error) {
			return nil, update.Update(ctx, client)
		},
	})
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}
