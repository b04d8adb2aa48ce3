// Copyright (c) 2025 BVK Chaitanya

package api

import "fmt"

func (r *WatchAddRequest) Check() error {
	if len(r.Contract) == 0 {
		return fmt.Errorf("contract address cannot be empty")
	}
	if r.Low.IsNegative() {
		return fmt.Errorf("low price cannot be negative")
	}
	if r.Low.GreaterThanOrEqual(r.High) {
		return fmt.Errorf("low price must be below the high price")
	}
	return nil
}

func (r *WatchRemoveRequest) Check() error {
	if len(r.Contract) == 0 {
		return fmt.Errorf("contract address cannot be empty")
	}
	return nil
}
