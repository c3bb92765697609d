package mw

import "context"

type ctxKey int

const (
	connIDKey ctxKey = iota
	uint8ParamKey
)

// WithConnID tags ctx with the id of the connection serving the request.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnID returns the connection id stored by WithConnID, or "".
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}
