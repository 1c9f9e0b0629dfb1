package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role grants access to admin-only actions.
type Role string

const (
	RoleManager Role = "Manager"
	RoleAdmin   Role = "Admin"
)

var validRoles = []Role{RoleManager, RoleAdmin}

// roleCodes are the integer codes written by earlier versions of the store.
var roleCodes = map[int]Role{0: RoleManager, 1: RoleAdmin}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role, ignoring case.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if strings.EqualFold(string(candidate), strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// UnmarshalJSON accepts role names as well as legacy integer codes.
func (r *Role) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		role, ok := roleCodes[code]
		if !ok {
			return fmt.Errorf("invalid role code %d", code)
		}
		*r = role
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	role, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// OrderStatus is the lifecycle state of an order.
//
//	InProgress → Completed
//	InProgress → Cancelled
//
// Completed and Cancelled are terminal.
type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "InProgress"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var orderStatusCodes = map[int]OrderStatus{
	1: OrderStatusInProgress,
	2: OrderStatusCompleted,
	3: OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// Staying in the same state is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	return s == OrderStatusInProgress && next.IsTerminal()
}

// ParseOrderStatus converts raw input into an OrderStatus, ignoring case.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if strings.EqualFold(string(candidate), strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// UnmarshalJSON accepts status names as well as legacy integer codes.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		status, ok := orderStatusCodes[code]
		if !ok {
			return fmt.Errorf("invalid order status code %d", code)
		}
		*s = status
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode order status: %w", err)
	}
	status, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
