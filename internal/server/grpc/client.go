package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote Translator service.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to target. Without options the connection is
// plaintext.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	return &Client{conn: conn}, nil
}

// Translate translates text with modelID, or the server default when empty.
func (c *Client) Translate(ctx context.Context, modelID, text string) (string, error) {
	if modelID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ModelIDKey, modelID)
	}

	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, TranslateMethod, wrapperspb.String(text), out); err != nil {
		return "", err
	}

	return out.GetValue(), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
