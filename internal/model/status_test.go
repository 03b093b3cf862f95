package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ForwardChain(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusProcessing))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))
}

func TestCanTransition_ReturnBranch(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusDelivered, OrderStatusReturnRequested))
	assert.True(t, CanTransition(OrderStatusReturnRequested, OrderStatusRefunded))
	assert.True(t, CanTransition(OrderStatusReturnRequested, OrderStatusReturnRejected))
}

func TestCanTransition_RejectsSkipsAndBackwards(t *testing.T) {
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusDelivered))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusProcessing))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusRefunded, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusReturnRejected, OrderStatusReturnRequested))
}

func TestAdminTransition_ExcludesCustomerReturnRequest(t *testing.T) {
	assert.False(t, AdminTransition(OrderStatusDelivered, OrderStatusReturnRequested))
	assert.True(t, AdminTransition(OrderStatusReturnRequested, OrderStatusRefunded))
	assert.True(t, AdminTransition(OrderStatusPending, OrderStatusProcessing))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(OrderStatusRefunded))
	assert.True(t, Terminal(OrderStatusReturnRejected))
	assert.False(t, Terminal(OrderStatusDelivered))
	assert.False(t, Terminal(OrderStatusPending))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(OrderStatusPending))
	assert.False(t, ValidStatus(OrderStatus("cancelled")))
}
