package seq

import (
	"context"
	"time"
)

// Transaction is an atomic update to the state of the ledger.
type Transaction struct {
	ID             string                 `json:"id"              yaml:"id"`
	Timestamp      time.Time              `json:"timestamp"       yaml:"timestamp"`
	SequenceNumber int64                  `json:"sequence_number" yaml:"sequence_number"`
	Actions        []Action               `json:"actions"         yaml:"actions"`
	Tags           map[string]interface{} `json:"tags,omitempty"  yaml:"tags,omitempty"`
}

// Issue creates new tokens in a destination account.
type Issue struct {
	FlavorID             string
	Amount               int64
	DestinationAccountID string
	TokenTags            map[string]interface{}
	ActionTags           map[string]interface{}
}

// Transfer moves tokens from a source account to a destination account.
// Filter and FilterParams select which of the source's tokens are spent.
type Transfer struct {
	FlavorID             string
	Amount               int64
	SourceAccountID      string
	DestinationAccountID string
	Filter               string
	FilterParams         []interface{}
	TokenTags            map[string]interface{}
	ActionTags           map[string]interface{}
}

// Retire takes tokens out of circulation from a source account.
type Retire struct {
	FlavorID        string
	Amount          int64
	SourceAccountID string
	Filter          string
	FilterParams    []interface{}
	ActionTags      map[string]interface{}
}

type actionPayload struct {
	Type                 string                 `json:"type"`
	FlavorID             string                 `json:"flavor_id"`
	Amount               int64                  `json:"amount"`
	SourceAccountID      string                 `json:"source_account_id,omitempty"`
	DestinationAccountID string                 `json:"destination_account_id,omitempty"`
	Filter               string                 `json:"filter,omitempty"`
	FilterParams         []interface{}          `json:"filter_params,omitempty"`
	TokenTags            map[string]interface{} `json:"token_tags,omitempty"`
	ActionTags           map[string]interface{} `json:"action_tags,omitempty"`
}

type transactionPayload struct {
	Actions         []actionPayload        `json:"actions"`
	TransactionTags map[string]interface{} `json:"transaction_tags,omitempty"`
}

// TransactionBuilder collects the actions of one transaction.
type TransactionBuilder struct {
	actions        []actionPayload
	tags           tagSetter
	idempotencyKey string
}

// NewTransaction returns an empty transaction builder.
func NewTransaction() *TransactionBuilder {
	return &TransactionBuilder{}
}

func copyParams(params []interface{}) []interface{} {
	if len(params) == 0 {
		return nil
	}

	out := make([]interface{}, len(params))
	copy(out, params)

	return out
}

// Issue appends an action that creates new tokens in a destination account.
func (b *TransactionBuilder) Issue(action Issue) *TransactionBuilder {
	b.actions = append(b.actions, actionPayload{
		Type:                 ActionTypeIssue,
		FlavorID:             action.FlavorID,
		Amount:               action.Amount,
		DestinationAccountID: action.DestinationAccountID,
		TokenTags:            copyTags(action.TokenTags),
		ActionTags:           copyTags(action.ActionTags),
	})

	return b
}

// Transfer appends an action that moves tokens between accounts.
func (b *TransactionBuilder) Transfer(action Transfer) *TransactionBuilder {
	b.actions = append(b.actions, actionPayload{
		Type:                 ActionTypeTransfer,
		FlavorID:             action.FlavorID,
		Amount:               action.Amount,
		SourceAccountID:      action.SourceAccountID,
		DestinationAccountID: action.DestinationAccountID,
		Filter:               action.Filter,
		FilterParams:         copyParams(action.FilterParams),
		TokenTags:            copyTags(action.TokenTags),
		ActionTags:           copyTags(action.ActionTags),
	})

	return b
}

// Retire appends an action that removes tokens from a source account.
func (b *TransactionBuilder) Retire(action Retire) *TransactionBuilder {
	b.actions = append(b.actions, actionPayload{
		Type:            ActionTypeRetire,
		FlavorID:        action.FlavorID,
		Amount:          action.Amount,
		SourceAccountID: action.SourceAccountID,
		Filter:          action.Filter,
		FilterParams:    copyParams(action.FilterParams),
		ActionTags:      copyTags(action.ActionTags),
	})

	return b
}

// AddTransactionTag sets one tag on the transaction itself.
func (b *TransactionBuilder) AddTransactionTag(key string, value interface{}) *TransactionBuilder {
	b.tags.add(key, value)

	return b
}

// SetTransactionTags replaces the transaction tags with a copy of tags.
func (b *TransactionBuilder) SetTransactionTags(tags map[string]interface{}) *TransactionBuilder {
	b.tags.set(tags)

	return b
}

// WithIdempotencyKey makes Transact safe to retry under key.
func (b *TransactionBuilder) WithIdempotencyKey(key string) *TransactionBuilder {
	b.idempotencyKey = key

	return b
}

func (b *TransactionBuilder) payload() transactionPayload {
	actions := make([]actionPayload, len(b.actions))
	for i, action := range b.actions {
		action.FilterParams = copyParams(action.FilterParams)
		action.TokenTags = copyTags(action.TokenTags)
		action.ActionTags = copyTags(action.ActionTags)
		actions[i] = action
	}

	return transactionPayload{
		Actions:         actions,
		TransactionTags: copyTags(b.tags.tags),
	}
}

// Transact submits the transaction. Without an idempotency key a failed
// submission is not retried, since the ledger may already have applied it.
func (b *TransactionBuilder) Transact(ctx context.Context, client Client) (*Transaction, error) {
	return create[Transaction](ctx, client, OperationTransact, b.payload(), b.idempotencyKey)
}
