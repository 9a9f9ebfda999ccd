package orders

import "github.com/angelmondragon/orderdesk-backend/pkg/enums"

// DeriveStatus computes an order's status from its assignment and item completion.
// It is pure and runs after every mutation that can move either input. Cancelled
// orders never change.
func DeriveStatus(current enums.OrderStatus, assigned bool, itemCount, completedCount int) enums.OrderStatus {
	if itemCount > 0 && completedCount >= itemCount && current != enums.OrderStatusCancelled {
		return enums.OrderStatusCompleted
	}
	if current.IsTerminal() {
		return current
	}
	if assigned {
		return enums.OrderStatusInProgress
	}
	return enums.OrderStatusPending
}
