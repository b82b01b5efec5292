package domain

// Address identifies an account or a capability that can be invoked.
// External accounts, the engine itself and the scheduler dispatch path
// are all distinguished by address.
type Address string

// String returns the string representation.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

// Token identifies an asset held by the engine and traded in pools.
type Token string

// String returns the string representation.
func (t Token) String() string {
	return string(t)
}

// Step is an index on the external discrete clock.
// It is the only notion of time in the core.
type Step uint64
