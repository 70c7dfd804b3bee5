package seq

import "context"

// Key is a signing key registered with the ledger.
type Key struct {
	ID   string                 `json:"id"             yaml:"id"`
	Tags map[string]interface{} `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type keyPayload struct {
	ID   string                 `json:"id,omitempty"`
	Tags map[string]interface{} `json:"tags,omitempty"`
}

// KeyBuilder collects the fields of a new key.
type KeyBuilder struct {
	id             string
	tags           tagSetter
	idempotencyKey string
}

// NewKey returns a builder for creating a key.
func NewKey() *KeyBuilder {
	return &KeyBuilder{}
}

func (b *KeyBuilder) SetID(id string) *KeyBuilder {
	b.id = id

	return b
}

func (b *KeyBuilder) AddTag(key string, value interface{}) *KeyBuilder {
	b.tags.add(key, value)

	return b
}

func (b *KeyBuilder) SetTags(tags map[string]interface{}) *KeyBuilder {
	b.tags.set(tags)

	return b
}

func (b *KeyBuilder) WithIdempotencyKey(key string) *KeyBuilder {
	b.idempotencyKey = key

	return b
}

// Create registers the key.
func (b *KeyBuilder) Create(ctx context.Context, client Client) (*Key, error) {
	payload := keyPayload{ID: b.id, Tags: copyTags(b.tags.tags)}

	return create[Key](ctx, client, OperationCreateKey, payload, b.idempotencyKey)
}
