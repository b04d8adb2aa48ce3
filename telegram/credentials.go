// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"fmt"
)

type Secrets struct {
	BotToken string `json:"token"`
}

func (v *Secrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("bot token cannot be empty")
	}
	return nil
}

func (v *Secrets) Clone() *Secrets {
	return &Secrets{
		BotToken: v.BotToken,
	}
}
