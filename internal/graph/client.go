package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jcfg "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Client wraps a Neo4j driver for one endpoint. All query execution in this
// layer goes through read sessions.
type Client struct {
	driver neo4j.DriverWithContext
}

// ConnectionOptions bound how long the driver spends establishing and
// retrying connections.
type ConnectionOptions struct {
	ConnectTimeout time.Duration
	MaxRetryTime   time.Duration
}

// NewClient creates a driver for the given endpoint. The driver connects
// lazily; Verify forces a round trip.
func NewClient(uri, user, password string, opts ConnectionOptions) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.MaxRetryTime <= 0 {
		opts.MaxRetryTime = 5 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(c *neo4jcfg.Config) {
		c.SocketConnectTimeout = opts.ConnectTimeout
		c.ConnectionAcquisitionTimeout = opts.ConnectTimeout
		c.MaxTransactionRetryTime = opts.MaxRetryTime
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Client{driver: driver}, nil
}

// ReadSession returns a new read-mode session.
func (c *Client) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

// Verify checks connectivity to the endpoint.
func (c *Client) Verify(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Close releases the driver resources.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
