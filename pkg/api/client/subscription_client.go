package client

import (
	"context"
	"fmt"
	"net/http"
)

// Subscription fetches the rewritten document served at /sub/{name}. No
// session is needed. Errors are *APIError and keep the raw reply, which
// may carry a debug block.
func (c *Client) Subscription(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("subscription name is required")
	}
	data, err := c.do(ctx, http.MethodGet, "/sub/"+name, nil, nil)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SubscriptionURL is the public URL clients should import for name.
func (c *Client) SubscriptionURL(name string) string {
	return c.url("/sub/"+name, nil)
}
