// Package event defines the domain event types and the canonical payload
// envelope delivered to subscribers.
package event

import "strings"

// Type enumerates the domain events that can trigger notifications.
// The set is closed: publishing an unregistered type is a programming error.
type Type string

// All publishable event types.
const (
	// Store lifecycle.
	TypeStoreCreated Type = "STORE_CREATED"
	TypeStoreUpdated Type = "STORE_UPDATED"
	TypeStoreDeleted Type = "STORE_DELETED"

	// Products.
	TypeProductCreated Type = "PRODUCT_CREATED"
	TypeProductUpdated Type = "PRODUCT_UPDATED"
	TypeProductDeleted Type = "PRODUCT_DELETED"

	// Inventory.
	TypeInventoryUpdated Type = "INVENTORY_UPDATED"
	TypeInventoryLow     Type = "INVENTORY_LOW"

	// Orders.
	TypeOrderCreated   Type = "ORDER_CREATED"
	TypeOrderUpdated   Type = "ORDER_UPDATED"
	TypeOrderPaid      Type = "ORDER_PAID"
	TypeOrderFulfilled Type = "ORDER_FULFILLED"
	TypeOrderCancelled Type = "ORDER_CANCELLED"

	// Customers.
	TypeCustomerCreated Type = "CUSTOMER_CREATED"
	TypeCustomerUpdated Type = "CUSTOMER_UPDATED"

	// Payments.
	TypePaymentSucceeded Type = "PAYMENT_SUCCEEDED"
	TypePaymentFailed    Type = "PAYMENT_FAILED"
	TypeRefundCreated    Type = "REFUND_CREATED"

	// App lifecycle. Always delivered to the installation they concern,
	// regardless of granted scopes.
	TypeAppInstalled   Type = "APP_INSTALLED"
	TypeAppUninstalled Type = "APP_UNINSTALLED"

	// Subscriptions (billing).
	TypeSubscriptionCreated   Type = "SUBSCRIPTION_CREATED"
	TypeSubscriptionCancelled Type = "SUBSCRIPTION_CANCELLED"
	TypeSubscriptionRenewed   Type = "SUBSCRIPTION_RENEWED"

	// TypeTest is the synthetic type used for test-send deliveries.
	TypeTest Type = "TEST"
)

// All returns every publishable event type, in declaration order.
// TypeTest is included because it appears in delivery history.
func All() []Type {
	return []Type{
		TypeStoreCreated, TypeStoreUpdated, TypeStoreDeleted,
		TypeProductCreated, TypeProductUpdated, TypeProductDeleted,
		TypeInventoryUpdated, TypeInventoryLow,
		TypeOrderCreated, TypeOrderUpdated, TypeOrderPaid,
		TypeOrderFulfilled, TypeOrderCancelled,
		TypeCustomerCreated, TypeCustomerUpdated,
		TypePaymentSucceeded, TypePaymentFailed, TypeRefundCreated,
		TypeAppInstalled, TypeAppUninstalled,
		TypeSubscriptionCreated, TypeSubscriptionCancelled, TypeSubscriptionRenewed,
		TypeTest,
	}
}

// Dotted returns the wire name of the event type: lower-cased with the first
// underscore converted to a dot ("ORDER_PAID" → "order.paid"). This is the
// value carried in the payload "type" field and the X-Webhook-Event header.
func (t Type) Dotted() string {
	s := strings.ToLower(string(t))
	return strings.Replace(s, "_", ".", 1)
}

// IsLifecycle reports whether the type is an app lifecycle event, which
// bypasses scope filtering.
func (t Type) IsLifecycle() bool {
	return t == TypeAppInstalled || t == TypeAppUninstalled
}

// ParseType returns the Type matching the given enum or dotted wire name.
func ParseType(s string) (Type, bool) {
	for _, t := range All() {
		if string(t) == s || t.Dotted() == s {
			return t, true
		}
	}
	return "", false
}

// Event is a tenant-scoped domain occurrence submitted for fan-out.
// Events are ephemeral: only the rendered envelope is persisted, inside
// each delivery record.
type Event struct {
	// Type is the event type being published.
	Type Type

	// TenantID identifies the tenant the event belongs to.
	TenantID string

	// TenantSlug is the tenant's human-readable handle, carried in the envelope.
	TenantSlug string

	// Data is the opaque event payload.
	Data map[string]any
}
