// Package repository defines the durable, identity-scoped state used by the cart.
package repository

import (
	"context"
	"errors"
)

// ErrNoValue is returned by Read when a scope has nothing stored under a key
var ErrNoValue = errors.New("no value stored")

// Keys persisted per scope
const (
	KeyCart     = "cart"
	KeyVoucher  = "voucher"
	KeyShipping = "shipping"
	KeyOrders   = "orders"
)

// GuestScope is the partition used when no user is signed in
const GuestScope = "guest"

// ScopeStore is a per-identity key-value durability layer. Values are opaque
// JSON documents; a scope never sees another scope's keys.
type ScopeStore interface {
	Read(ctx context.Context, scope, key string) ([]byte, error)
	Write(ctx context.Context, scope, key string, value []byte) error
	// Clear removes the given keys, or every key of the scope when none are given.
	Clear(ctx context.Context, scope string, keys ...string) error
}
