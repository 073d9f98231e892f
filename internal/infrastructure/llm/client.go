package llm

import "context"

// Client is the language-model invocation contract. The daemon does not
// implement a provider protocol; the embedder supplies the transport.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a plain function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
