package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by DocumentStore when Redis is disabled
var ErrDisabled = errors.New("redis disabled")

// DocumentStore keeps whole serialized documents under prefixed keys.
// SET 한 번으로 문서 전체를 교체하므로 읽는 쪽이 반쯤 쓰인 값을 볼 수 없음
type DocumentStore struct {
	client *Client
	prefix string
}

// NewDocumentStore creates a document store helper
func NewDocumentStore(client *Client, prefix string) *DocumentStore {
	return &DocumentStore{
		client: client,
		prefix: prefix,
	}
}

// Key returns the fully qualified key for name
func (s *DocumentStore) Key(name string) string {
	return fmt.Sprintf("%s:doc:%s", s.prefix, name)
}

// Put replaces the document stored under name (no expiry)
func (s *DocumentStore) Put(ctx context.Context, name string, doc []byte) error {
	if !s.client.Enabled() {
		return ErrDisabled
	}
	return s.client.Redis().Set(ctx, s.Key(name), doc, 0).Err()
}

// Get returns the document stored under name; found=false on a missing key
func (s *DocumentStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if !s.client.Enabled() {
		return nil, false, ErrDisabled
	}

	data, err := s.client.Redis().Get(ctx, s.Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", name, err)
	}
	return data, true, nil
}
