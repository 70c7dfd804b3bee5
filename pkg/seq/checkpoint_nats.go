package seq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSCheckpointConfig configures the JetStream KV checkpoint backend.
type NATSCheckpointConfig struct {
	// URL of the NATS server. Ignored when Conn is set.
	URL string
	// Conn is an existing connection the store uses without closing.
	Conn *nats.Conn
	// Bucket is the KV bucket name, created when missing.
	Bucket string
	// TTL expires checkpoints that have not been updated. Zero keeps them.
	TTL time.Duration
}

// NATSCheckpointStore keeps cursors in a JetStream key-value bucket so that
// several workers can share resume points.
type NATSCheckpointStore struct {
	conn  *nats.Conn
	owned bool
	kv    jetstream.KeyValue
}

// NewNATSCheckpointStore connects to NATS and opens (or creates) the bucket.
func NewNATSCheckpointStore(ctx context.Context, config *NATSCheckpointConfig) (*NATSCheckpointStore, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	conn := config.Conn
	owned := false

	if conn == nil {
		url := config.URL
		if url == "" {
			url = nats.DefaultURL
		}

		var err error

		conn, err = nats.Connect(url, nats.Name("seq-checkpoints"))
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}

		owned = true
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = constants.DefaultCheckpointBucket
	}

	js, err := jetstream.New(conn)
	if err != nil {
		closeOwned(conn, owned)

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "seq pagination checkpoints",
		TTL:         config.TTL,
	})
	if err != nil {
		closeOwned(conn, owned)

		return nil, fmt.Errorf("opening checkpoint bucket %s: %w", bucket, err)
	}

	return &NATSCheckpointStore{conn: conn, owned: owned, kv: kv}, nil
}

func closeOwned(conn *nats.Conn, owned bool) {
	if owned {
		conn.Close()
	}
}

func (s *NATSCheckpointStore) Load(ctx context.Context, name string) (string, error) {
	entry, err := s.kv.Get(ctx, name)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", ErrCheckpointNotFound
	}

	if err != nil {
		return "", fmt.Errorf("loading checkpoint from NATS: %w", err)
	}

	return string(entry.Value()), nil
}

func (s *NATSCheckpointStore) Save(ctx context.Context, name, cursor string) error {
	_, err := s.kv.Put(ctx, name, []byte(cursor))
	if err != nil {
		return fmt.Errorf("saving checkpoint to NATS: %w", err)
	}

	return nil
}

func (s *NATSCheckpointStore) Delete(ctx context.Context, name string) error {
	err := s.kv.Delete(ctx, name)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting checkpoint from NATS: %w", err)
	}

	return nil
}

// Close closes the NATS connection if the store opened it.
func (s *NATSCheckpointStore) Close() {
	closeOwned(s.conn, s.owned)
}
