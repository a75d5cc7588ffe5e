package state

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

var _ Store = (*NATSStore)(nil)

// NATSStore keeps records in a JetStream key-value bucket.
type NATSStore struct {
	conn   *nats.Conn
	bucket string
	kv     nats.KeyValue
}

// NewNATSStore binds to bucket, creating it on first use. The store takes
// ownership of conn and closes it on Close.
func NewNATSStore(conn *nats.Conn, bucket string) (*NATSStore, error) {
	if bucket == "" {
		bucket = "readaloud"
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "readaloud playback positions",
			History:     1,
			Storage:     nats.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind key-value bucket '%s': %w", bucket, err)
	}

	return &NATSStore{conn: conn, bucket: bucket, kv: kv}, nil
}

// Document IDs may hold characters that are not legal in KV keys.
func natsKey(kind, docID string) string {
	return kind + "." + base64.RawURLEncoding.EncodeToString([]byte(docID))
}

func (s *NATSStore) Save(_ context.Context, docID string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	pos = pos.normalized()
	return s.put(natsKey("pos", docID), pos)
}

func (s *NATSStore) Load(_ context.Context, docID string) (Position, error) {
	var pos Position
	if err := s.get(natsKey("pos", docID), &pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

func (s *NATSStore) Clear(_ context.Context, docID string) error {
	for _, key := range []string{natsKey("pos", docID), natsKey("prefs", docID)} {
		if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete '%s' from bucket '%s': %w", key, s.bucket, err)
		}
	}
	return nil
}

func (s *NATSStore) SavePreferences(_ context.Context, docID string, prefs Preferences) error {
	return s.put(natsKey("prefs", docID), prefs)
}

func (s *NATSStore) LoadPreferences(_ context.Context, docID string) (Preferences, error) {
	var prefs Preferences
	if err := s.get(natsKey("prefs", docID), &prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (s *NATSStore) Close() error {
	s.conn.Close()
	return nil
}

func (s *NATSStore) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal '%s': %w", key, err)
	}
	if _, err := s.kv.Put(key, data); err != nil {
		return fmt.Errorf("failed to put '%s' to bucket '%s': %w", key, s.bucket, err)
	}
	return nil
}

// get leaves v untouched when key is missing.
func (s *NATSStore) get(key string, v any) error {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get '%s' from bucket '%s': %w", key, s.bucket, err)
	}
	if err := json.Unmarshal(entry.Value(), v); err != nil {
		return fmt.Errorf("failed to unmarshal '%s': %w", key, err)
	}
	return nil
}
