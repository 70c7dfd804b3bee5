package seq

import "context"

// Account is a container for tokens on a ledger.
type Account struct {
	ID string `json:"id" yaml:"id"`
	// KeyIDs are the keys that sign transactions spending from the account.
	KeyIDs []string `json:"key_ids" yaml:"key_ids"`
	// Quorum is the number of keys required to sign a spend.
	Quorum int                    `json:"quorum"         yaml:"quorum"`
	Tags   map[string]interface{} `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type accountPayload struct {
	ID     string                 `json:"id,omitempty"`
	KeyIDs []string               `json:"key_ids"`
	Quorum *int                   `json:"quorum,omitempty"`
	Tags   map[string]interface{} `json:"tags,omitempty"`
}

// AccountBuilder collects the fields of a new account.
type AccountBuilder struct {
	id             string
	quorum         *int
	keyIDs         []string
	tags           tagSetter
	idempotencyKey string
}

// NewAccount returns a builder for creating an account.
func NewAccount() *AccountBuilder {
	return &AccountBuilder{}
}

// SetID specifies the id for the new account. The server generates one when
// it is not provided.
func (b *AccountBuilder) SetID(id string) *AccountBuilder {
	b.id = id

	return b
}

// SetQuorum specifies the number of keys required to sign a spend. It
// defaults to the number of keys provided.
func (b *AccountBuilder) SetQuorum(quorum int) *AccountBuilder {
	b.quorum = &quorum

	return b
}

// AddKeyID adds a key that can sign transactions spending from the account.
func (b *AccountBuilder) AddKeyID(id string) *AccountBuilder {
	b.keyIDs = append(b.keyIDs, id)

	return b
}

// AddTag adds a key-value pair to the account's tags.
func (b *AccountBuilder) AddTag(key string, value interface{}) *AccountBuilder {
	b.tags.add(key, value)

	return b
}

// SetTags replaces the account's tags.
func (b *AccountBuilder) SetTags(tags map[string]interface{}) *AccountBuilder {
	b.tags.set(tags)

	return b
}

// WithIdempotencyKey lets the transport retry the create safely.
func (b *AccountBuilder) WithIdempotencyKey(key string) *AccountBuilder {
	b.idempotencyKey = key

	return b
}

func (b *AccountBuilder) payload() accountPayload {
	keyIDs := make([]string, len(b.keyIDs))
	copy(keyIDs, b.keyIDs)

	var quorum *int
	if b.quorum != nil {
		q := *b.quorum
		quorum = &q
	}

	return accountPayload{
		ID:     b.id,
		KeyIDs: keyIDs,
		Quorum: quorum,
		Tags:   copyTags(b.tags.tags),
	}
}

// Create creates the account in the ledger.
func (b *AccountBuilder) Create(ctx context.Context, client Client) (*Account, error) {
	return create[Account](ctx, client, OperationCreateAccount, b.payload(), b.idempotencyKey)
}
