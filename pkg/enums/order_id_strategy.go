package enums

import (
	"fmt"
	"strings"
)

// OrderIDStrategy selects how an order identifier is shown to people.
type OrderIDStrategy string

const (
	OrderIDStrategyUUID       OrderIDStrategy = "uuid"
	OrderIDStrategySequential OrderIDStrategy = "sequential"
)

func (s OrderIDStrategy) IsValid() bool {
	return s == OrderIDStrategyUUID || s == OrderIDStrategySequential
}

// ParseOrderIDStrategy defaults blank input to the uuid strategy.
func ParseOrderIDStrategy(value string) (OrderIDStrategy, error) {
	normalized := OrderIDStrategy(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return OrderIDStrategyUUID, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid order id strategy %q", value)
	}
	return normalized, nil
}
