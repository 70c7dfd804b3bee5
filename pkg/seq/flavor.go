package seq

import "context"

// Flavor is a taxonomy used to differentiate types of tokens in a ledger.
type Flavor struct {
	ID     string                 `json:"id"             yaml:"id"`
	KeyIDs []string               `json:"key_ids"        yaml:"key_ids"`
	Quorum int                    `json:"quorum"         yaml:"quorum"`
	Tags   map[string]interface{} `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type flavorPayload struct {
	ID     string                 `json:"id"`
	KeyIDs []string               `json:"key_ids"`
	Quorum *int                   `json:"quorum,omitempty"`
	Tags   map[string]interface{} `json:"tags,omitempty"`
}

// FlavorBuilder collects the fields of a new flavor.
type FlavorBuilder struct {
	id             string
	quorum         *int
	keyIDs         []string
	tags           tagSetter
	idempotencyKey string
}

// NewFlavor returns a builder for defining a flavor.
func NewFlavor() *FlavorBuilder {
	return &FlavorBuilder{}
}

// SetID specifies the unique, user-specified id of the flavor.
func (b *FlavorBuilder) SetID(id string) *FlavorBuilder {
	b.id = id

	return b
}

// SetQuorum specifies the number of keys required to issue tokens of the flavor.
func (b *FlavorBuilder) SetQuorum(quorum int) *FlavorBuilder {
	b.quorum = &quorum

	return b
}

// AddKeyID adds a key that controls the flavor.
func (b *FlavorBuilder) AddKeyID(id string) *FlavorBuilder {
	b.keyIDs = append(b.keyIDs, id)

	return b
}

func (b *FlavorBuilder) AddTag(key string, value interface{}) *FlavorBuilder {
	b.tags.add(key, value)

	return b
}

func (b *FlavorBuilder) SetTags(tags map[string]interface{}) *FlavorBuilder {
	b.tags.set(tags)

	return b
}

func (b *FlavorBuilder) WithIdempotencyKey(key string) *FlavorBuilder {
	b.idempotencyKey = key

	return b
}

func (b *FlavorBuilder) payload() flavorPayload {
	keyIDs := make([]string, len(b.keyIDs))
	copy(keyIDs, b.keyIDs)

	var quorum *int
	if b.quorum != nil {
		q := *b.quorum
		quorum = &q
	}

	return flavorPayload{
		ID:     b.id,
		KeyIDs: keyIDs,
		Quorum: quorum,
		Tags:   copyTags(b.tags.tags),
	}
}

// Create defines the flavor in the ledger.
func (b *FlavorBuilder) Create(ctx context.Context, client Client) (*Flavor, error) {
	return create[Flavor](ctx, client, OperationCreateFlavor, b.payload(), b.idempotencyKey)
}
