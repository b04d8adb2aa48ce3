// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"context"
)

type chatIDKey struct{}

// WithChatID associates a chat id with the context. Command handlers
// receive a context prepared this way, so they can tell which chat issued
// the command.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatID returns the chat id associated with the context or zero.
func ChatID(ctx context.Context) int64 {
	if v, ok := ctx.Value(chatIDKey{}).(int64); ok {
		return v
	}
	return 0
}
