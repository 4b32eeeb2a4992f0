package domain

import (
	"context"
	"strings"
)

// Address identifies a participant (seller, buyer, oracle, owner) or a custody account
type Address string

// Normalize lowercases and trims an address so that "0xAbC" and "0xabc " compare equal
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// IsZero reports whether the address is empty
func (a Address) IsZero() bool {
	return a.Normalize() == ""
}

func (a Address) String() string {
	return string(a)
}

// ItemID identifies an escrowed asset item. IDs start at 1 and increase monotonically.
type ItemID uint64

// BundleID identifies a bundle. IDs start at 1 and increase monotonically.
type BundleID uint64

// AssetRef locates an asset inside the external asset registry
type AssetRef struct {
	Registry string // Registry (collection/contract) reference
	AssetID  string // Asset identifier within the registry
}

func (r AssetRef) String() string {
	return r.Registry + "/" + r.AssetID
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller address
func WithCaller(ctx context.Context, caller Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller.Normalize())
}

// CallerFromContext returns the authenticated caller address, if any
func CallerFromContext(ctx context.Context) (Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(Address)
	if !ok || caller.IsZero() {
		return "", false
	}
	return caller, true
}
