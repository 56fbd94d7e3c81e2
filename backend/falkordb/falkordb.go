// Package falkordb executes Cypher against a FalkorDB graph over the Redis
// protocol and describes the graph's schema for query generation.
package falkordb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/lexgraph/backend"
)

// DefaultGraph is used when the connection string names no graph.
const DefaultGraph = "legal"

// Client runs queries against one named graph.
type Client struct {
	conn      redis.UniversalClient
	graphName string
}

// Options configures NewClient.
type Options struct {
	// URL has the form falkordb://[:password@]host:port/graph.
	// redis:// is accepted as an alias.
	URL string
}

// NewClient parses the connection string and connects a go-redis client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme != "falkordb" && u.Scheme != "redis" {
		return nil, fmt.Errorf("invalid connection string: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}

	ropts := &redis.Options{Addr: u.Host}
	if u.User != nil {
		ropts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			ropts.Password = pw
		}
	}

	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = DefaultGraph
	}
	return NewClientWithRedis(redis.NewClient(ropts), graphName), nil
}

// NewClientWithRedis wraps an existing go-redis client.
func NewClientWithRedis(conn redis.UniversalClient, graphName string) *Client {
	if graphName == "" {
		graphName = DefaultGraph
	}
	return &Client{conn: conn, graphName: graphName}
}

// GraphName returns the graph the client queries.
func (c *Client) GraphName() string {
	return c.graphName
}

// QueryResult represents the results of a query.
type QueryResult struct {
	Header     []string
	Rows       [][]any
	Statistics []string
}

// Query executes a query against the graph.
func (c *Client) Query(ctx context.Context, cypher string) (QueryResult, error) {
	return c.do(ctx, "GRAPH.QUERY", cypher)
}

// ReadOnlyQuery executes a query that the server refuses if it writes.
func (c *Client) ReadOnlyQuery(ctx context.Context, cypher string) (QueryResult, error) {
	return c.do(ctx, "GRAPH.RO_QUERY", cypher)
}

func (c *Client) do(ctx context.Context, command, cypher string) (QueryResult, error) {
	res, err := c.conn.Do(ctx, command, c.graphName, cypher).Result()
	if err != nil {
		return QueryResult{}, classify(cypher, err)
	}
	return parseReply(res)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Schema describes node labels, relationship types, property keys and the
// relationship patterns present in the graph.
func (c *Client) Schema(ctx context.Context) (string, error) {
	labels, err := c.column(ctx, "CALL db.labels()")
	if err != nil {
		return "", fmt.Errorf("failed to read labels: %w", err)
	}
	relTypes, err := c.column(ctx, "CALL db.relationshipTypes()")
	if err != nil {
		return "", fmt.Errorf("failed to read relationship types: %w", err)
	}
	props, err := c.column(ctx, "CALL db.propertyKeys()")
	if err != nil {
		return "", fmt.Errorf("failed to read property keys: %w", err)
	}
	patterns, err := c.ReadOnlyQuery(ctx,
		"MATCH (a)-[r]->(b) RETURN DISTINCT labels(a)[0], type(r), labels(b)[0] LIMIT 100")
	if err != nil {
		return "", fmt.Errorf("failed to read relationship patterns: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Node labels: %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(&sb, "Relationship types: %s\n", strings.Join(relTypes, ", "))
	fmt.Fprintf(&sb, "Property keys: %s\n", strings.Join(props, ", "))
	sb.WriteString("Relationships:")
	lines := make([]string, 0, len(patterns.Rows))
	for _, row := range patterns.Rows {
		if len(row) != 3 {
			continue
		}
		lines = append(lines, fmt.Sprintf("(:%s)-[:%s]->(:%s)", FormatValue(row[0]), FormatValue(row[1]), FormatValue(row[2])))
	}
	sort.Strings(lines)
	for _, l := range lines {
		sb.WriteString("\n")
		sb.WriteString(l)
	}
	return sb.String(), nil
}

func (c *Client) column(ctx context.Context, cypher string) ([]string, error) {
	qr, err := c.ReadOnlyQuery(ctx, cypher)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(qr.Rows))
	for _, row := range qr.Rows {
		if len(row) > 0 {
			out = append(out, FormatValue(row[0]))
		}
	}
	sort.Strings(out)
	return out, nil
}

// malformedMarkers are fragments of FalkorDB error replies caused by the
// statement itself rather than by the server or connection.
var malformedMarkers = []string{
	"errMsg: Invalid input",
	"Invalid input",
	"syntax error",
	"Unknown function",
	"not defined",
	"Type mismatch",
	"Query cannot conclude with",
	"is to be executed only on read-only queries",
	"Unbounded variable length",
	"Invalid combination",
}

func classify(cypher string, err error) error {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range malformedMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return &backend.MalformedQueryError{Statement: cypher, Err: err}
		}
	}
	return err
}
