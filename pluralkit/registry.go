package pluralkit

import (
	"context"
	"sync"

	"discord-pk-bot/models"
)

// Registry hands out one Client per distinct API base URL, since guilds may
// point at different deployments.
type Registry struct {
	opts    Options
	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Client returns the memoized client for baseURL, creating it on first use.
func (r *Registry) Client(baseURL string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[baseURL]; ok {
		return c, nil
	}

	c, err := NewClient(baseURL, r.opts)
	if err != nil {
		return nil, err
	}
	r.clients[baseURL] = c
	return c, nil
}

// Len returns the number of distinct deployments seen so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Lookup fetches the record for messageID from the deployment at apiURL.
// A missing record is reported as nil with no error.
func (r *Registry) Lookup(ctx context.Context, apiURL, messageID string) (*models.ProxyRecord, error) {
	c, err := r.Client(apiURL)
	if err != nil {
		return nil, err
	}
	return c.GetMessageOrNil(ctx, messageID)
}
