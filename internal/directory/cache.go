// internal/directory/cache.go
package directory

import "sync"

// Cache hands out one long-lived client per credential set so the token
// amortization actually pays off across requests. Keying on the full
// triple means rotated credentials miss the cache and get a fresh client.
type Cache struct {
	opts Options

	mu      sync.Mutex
	clients map[Credentials]*Client
}

func NewCache(opts Options) *Cache {
	return &Cache{opts: opts, clients: map[Credentials]*Client{}}
}

// For returns the cached client for the credential set, constructing one
// on first use.
func (c *Cache) For(creds Credentials) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[creds]; ok {
		return cl
	}
	cl := NewClient(creds, c.opts)
	c.clients[creds] = cl
	return cl
}
