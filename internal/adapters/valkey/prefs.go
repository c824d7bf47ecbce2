package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// prefTTL keeps abandoned device preferences from accumulating.
const prefTTL = 90 * 24 * time.Hour

// PrefStore implements ports.PreferenceStore using Valkey
// (Redis-compatible). Keys are scoped per device.
type PrefStore struct {
	client valkey.Client
	device string
}

// New connects to Valkey.
func New(addr string) (*PrefStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &PrefStore{client: client}, nil
}

// ForDevice returns a store view scoped to one device ID. The views
// share the underlying connection.
func (s *PrefStore) ForDevice(deviceID string) *PrefStore {
	return &PrefStore{client: s.client, device: deviceID}
}

func (s *PrefStore) key(key string) string {
	return "device:" + s.device + ":" + key
}

// Get retrieves a preference value. A missing key is an empty value,
// not an error.
func (s *PrefStore) Get(ctx context.Context, key string) (string, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", nil
		}
		return "", err
	}
	return cmd.ToString()
}

// Set stores a preference value with the retention TTL.
func (s *PrefStore) Set(ctx context.Context, key, value string) error {
	cmd := s.client.Do(ctx,
		s.client.B().Set().Key(s.key(key)).Value(value).Ex(prefTTL).Build(),
	)
	return cmd.Error()
}

// Close releases the client.
func (s *PrefStore) Close() {
	s.client.Close()
}
