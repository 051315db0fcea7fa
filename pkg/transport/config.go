package transport

import (
	"errors"
	"sync"
)

// ErrMessagingNotConfigured is returned when an organization has no
// messaging service identity registered.
var ErrMessagingNotConfigured = errors.New("messaging service not configured for organization")

// MessagingConfig resolves an organization slug to the service identity its
// outbound SMS must be sent from.
type MessagingConfig interface {
	ServiceIdentity(orgSlug string) (string, error)
}

// StaticMessagingConfig is an in-memory MessagingConfig keyed by org slug.
type StaticMessagingConfig struct {
	mu         sync.RWMutex
	identities map[string]string
}

// NewStaticMessagingConfig creates a config from an initial mapping. The map
// may be nil.
func NewStaticMessagingConfig(identities map[string]string) *StaticMessagingConfig {
	m := make(map[string]string, len(identities))
	for slug, identity := range identities {
		m[slug] = identity
	}

	return &StaticMessagingConfig{identities: m}
}

// Register adds or replaces the service identity for an organization.
func (c *StaticMessagingConfig) Register(orgSlug, serviceIdentity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.identities[orgSlug] = serviceIdentity
}

func (c *StaticMessagingConfig) ServiceIdentity(orgSlug string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	identity, ok := c.identities[orgSlug]
	if !ok || identity == "" {
		return "", ErrMessagingNotConfigured
	}

	return identity, nil
}
