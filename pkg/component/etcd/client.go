// Package etcd provides the etcd client used for service registration.
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	options "github.com/kart-io/agriqa/pkg/options/etcd"
)

// pingKey is read to check connectivity; it never exists.
const pingKey = "__agriqa_ping__"

// Client wraps clientv3.Client.
type Client struct {
	client *clientv3.Client
	opts   *options.Options
}

// New creates an etcd client from opts and verifies connectivity.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("etcd options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid etcd options: %v", errs)
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
		Username:    opts.Username,
		Password:    opts.Password.Reveal(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	c := &Client{client: cli, opts: opts}
	if err := c.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return c, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "etcd"
}

// Ping checks that the cluster answers a read within the request timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if _, err := c.client.Get(ctx, pingKey); err != nil {
		return fmt.Errorf("etcd ping failed: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Raw returns the underlying clientv3.Client.
func (c *Client) Raw() *clientv3.Client {
	return c.client
}
