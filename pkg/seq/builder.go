package seq

import (
	"context"
	"fmt"
)

// Create and update operation names.
const (
	OperationCreateAccount     = "create-account"
	OperationCreateFlavor      = "create-flavor"
	OperationCreateKey         = "create-key"
	OperationTransact          = "transact"
	OperationUpdateAccountTags = "update-account-tags"
	OperationUpdateFlavorTags  = "update-flavor-tags"
	OperationUpdateActionTags  = "update-action-tags"
)

// create sends a one-shot create call and decodes the created entity.
// It is retried by the transport only when idempotencyKey is set.
func create[T any](ctx context.Context, client Client, operation string, payload interface{}, idempotencyKey string) (*T, error) {
	var entity T

	err := client.Invoke(ctx, &Call{
		Operation:      operation,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
	}, &entity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return &entity, nil
}

// copyTags returns an independent copy of tags, nil when empty.
func copyTags(tags map[string]interface{}) map[string]interface{} {
	if len(tags) == 0 {
		return nil
	}

	out := make(map[string]interface{}, len(tags))
	for key, value := range tags {
		out[key] = value
	}

	return out
}

// tagSetter accumulates user tags for a builder.
type tagSetter struct {
	tags map[string]interface{}
}

func (s *tagSetter) add(key string, value interface{}) {
	if s.tags == nil {
		s.tags = make(map[string]interface{})
	}

	s.tags[key] = value
}

func (s *tagSetter) set(tags map[string]interface{}) {
	s.tags = copyTags(tags)
}

// TagUpdateBuilder replaces the tags of one existing resource.
//
// Updates send the full tag set, so re-sending the same update is safe and
// the transport treats it as idempotent.
type TagUpdateBuilder struct {
	operation string
	id        string
	tags      map[string]interface{}
}

type tagUpdatePayload struct {
	ID   string                 `json:"id"`
	Tags map[string]interface{} `json:"tags"`
}

// NewTagUpdateBuilder returns a tag update builder for operation.
func NewTagUpdateBuilder(operation string) *TagUpdateBuilder {
	return &TagUpdateBuilder{operation: operation}
}

// UpdateAccountTags returns a builder that replaces an account's tags.
func UpdateAccountTags() *TagUpdateBuilder {
	return NewTagUpdateBuilder(OperationUpdateAccountTags)
}

// UpdateFlavorTags returns a builder that replaces a flavor's tags.
func UpdateFlavorTags() *TagUpdateBuilder {
	return NewTagUpdateBuilder(OperationUpdateFlavorTags)
}

// UpdateActionTags returns a builder that replaces an action's tags.
func UpdateActionTags() *TagUpdateBuilder {
	return NewTagUpdateBuilder(OperationUpdateActionTags)
}

// ForID specifies the resource to update.
func (b *TagUpdateBuilder) ForID(id string) *TagUpdateBuilder {
	b.id = id

	return b
}

// SetTags specifies the new tag set.
func (b *TagUpdateBuilder) SetTags(tags map[string]interface{}) *TagUpdateBuilder {
	b.tags = copyTags(tags)

	return b
}

// Update sends the tag update.
func (b *TagUpdateBuilder) Update(ctx context.Context, client Client) error {
	tags := copyTags(b.tags)
	if tags == nil {
		tags = map[string]interface{}{}
	}

	err := client.Invoke(ctx, &Call{
		Operation:  b.operation,
		Payload:    tagUpdatePayload{ID: b.id, Tags: tags},
		Idempotent: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", b.operation, err)
	}

	return nil
}
