// Copyright (c) 2025 BVK Chaitanya

package state

type TelegramState struct {
	UserChatIDMap map[string]int64
}
