package seq

import "time"

// Action types recorded by the ledger.
const (
	ActionTypeIssue    = "issue"
	ActionTypeTransfer = "transfer"
	ActionTypeRetire   = "retire"
)

// Action is a single issue, transfer, or retire within a transaction.
type Action struct {
	ID                   string                 `json:"id"                               yaml:"id"`
	Type                 string                 `json:"type"                             yaml:"type"`
	Timestamp            time.Time              `json:"timestamp"                        yaml:"timestamp"`
	TransactionID        string                 `json:"transaction_id"                   yaml:"transaction_id"`
	FlavorID             string                 `json:"flavor_id"                        yaml:"flavor_id"`
	Amount               int64                  `json:"amount"                           yaml:"amount"`
	SourceAccountID      string                 `json:"source_account_id,omitempty"      yaml:"source_account_id,omitempty"`
	DestinationAccountID string                 `json:"destination_account_id,omitempty" yaml:"destination_account_id,omitempty"`
	Tags                 map[string]interface{} `json:"tags,omitempty"                   yaml:"tags,omitempty"`
	// Snapshot holds the tags of related objects as of the transaction.
	Snapshot *ActionSnapshot `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

type ActionSnapshot struct {
	FlavorTags             map[string]interface{} `json:"flavor_tags,omitempty"              yaml:"flavor_tags,omitempty"`
	SourceAccountTags      map[string]interface{} `json:"source_account_tags,omitempty"      yaml:"source_account_tags,omitempty"`
	DestinationAccountTags map[string]interface{} `json:"destination_account_tags,omitempty" yaml:"destination_account_tags,omitempty"`
	TokenTags              map[string]interface{} `json:"token_tags,omitempty"               yaml:"token_tags,omitempty"`
	TransactionTags        map[string]interface{} `json:"transaction_tags,omitempty"         yaml:"transaction_tags,omitempty"`
}
