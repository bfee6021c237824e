package logx

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyChatID
)

// WithRequestID stores the per-request id picked up by FromCtx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithChatID stores the destination chat id (int64 or string) picked up by FromCtx.
func WithChatID(ctx context.Context, chat any) context.Context {
	return context.WithValue(ctx, ctxKeyChatID, chat)
}
