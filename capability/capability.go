// Package capability maps permission scopes to the event families they
// authorize. The mapping is a fixed table built once at init; app
// installations only receive events whose required scope they hold.
package capability

import (
	"fmt"

	"github.com/storekit/hooks/event"
)

// Scope is a coarse permission grant on an app installation.
type Scope string

// All grantable scopes.
const (
	ScopeReadOrders     Scope = "READ_ORDERS"
	ScopeWriteOrders    Scope = "WRITE_ORDERS"
	ScopeReadProducts   Scope = "READ_PRODUCTS"
	ScopeWriteProducts  Scope = "WRITE_PRODUCTS"
	ScopeReadCustomers  Scope = "READ_CUSTOMERS"
	ScopeManageWebhooks Scope = "MANAGE_WEBHOOKS"
)

// ScopeNone marks event families that are delivered without any scope check
// (app lifecycle, payments, store, billing subscriptions, test sends).
const ScopeNone Scope = ""

// Event families. Write scopes authorize the same family as their read
// counterpart; the gating scope recorded in the table is always the read one.
var (
	orderEvents = []event.Type{
		event.TypeOrderCreated, event.TypeOrderUpdated, event.TypeOrderPaid,
		event.TypeOrderFulfilled, event.TypeOrderCancelled,
	}
	productEvents = []event.Type{
		event.TypeProductCreated, event.TypeProductUpdated, event.TypeProductDeleted,
		event.TypeInventoryUpdated, event.TypeInventoryLow,
	}
	customerEvents = []event.Type{
		event.TypeCustomerCreated, event.TypeCustomerUpdated,
	}
)

// requiredScopes is the complete gating table. Every publishable event type
// has an entry; a missing entry means the type was added without deciding its
// gating, which RequiredScope treats as a programming error.
var requiredScopes = buildTable()

func buildTable() map[event.Type]Scope {
	table := make(map[event.Type]Scope, len(event.All()))

	// Ungated by default.
	for _, t := range event.All() {
		table[t] = ScopeNone
	}
	for _, t := range orderEvents {
		table[t] = ScopeReadOrders
	}
	for _, t := range productEvents {
		table[t] = ScopeReadProducts
	}
	for _, t := range customerEvents {
		table[t] = ScopeReadCustomers
	}

	return table
}

// RequiredScope returns the scope an installation must hold to receive the
// given event type, or ScopeNone when the type is ungated (the second return
// is false). It panics on an unknown event type: the enum is closed, so an
// unknown type is a bug in the publishing collaborator.
func RequiredScope(t event.Type) (Scope, bool) {
	s, ok := requiredScopes[t]
	if !ok {
		panic(fmt.Sprintf("capability: unknown event type %q", t))
	}
	return s, s != ScopeNone
}

// AllowedEvents returns the event types a scope authorizes. Write scopes
// mirror their read family; MANAGE_WEBHOOKS grants no event deliveries.
func AllowedEvents(s Scope) []event.Type {
	switch s {
	case ScopeReadOrders, ScopeWriteOrders:
		return append([]event.Type(nil), orderEvents...)
	case ScopeReadProducts, ScopeWriteProducts:
		return append([]event.Type(nil), productEvents...)
	case ScopeReadCustomers:
		return append([]event.Type(nil), customerEvents...)
	default:
		return nil
	}
}

// Scopes returns every grantable scope.
func Scopes() []Scope {
	return []Scope{
		ScopeReadOrders, ScopeWriteOrders,
		ScopeReadProducts, ScopeWriteProducts,
		ScopeReadCustomers, ScopeManageWebhooks,
	}
}

// Satisfies reports whether the granted scope set authorizes the event type.
// Lifecycle events always pass; they are routed to the installation they
// concern by the dispatcher, not filtered here.
func Satisfies(granted []Scope, t event.Type) bool {
	if t.IsLifecycle() {
		return true
	}

	required, gated := RequiredScope(t)
	if !gated {
		return true
	}

	for _, s := range granted {
		if normalize(s) == required {
			return true
		}
	}
	return false
}

// normalize folds write scopes onto the read scope that gates their family.
func normalize(s Scope) Scope {
	switch s {
	case ScopeWriteOrders:
		return ScopeReadOrders
	case ScopeWriteProducts:
		return ScopeReadProducts
	default:
		return s
	}
}
