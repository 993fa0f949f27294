package scopeshare

import "reflect"

// Key identifies a slot in the store and carries its default value.
// Keys are identified by their Go type, not by runtime strings: declare an
// empty struct type per slot and implement Default on it.
//
//	type CounterKey struct{}
//	func (CounterKey) Default() int { return 0 }
//
// Absence of a stored entry for a key always resolves to the key's default,
// never to an error.
type Key[T any] interface {
	Default() T
}

// keyToken is the table discriminator for a key: its reflected type identity.
type keyToken struct {
	rtype reflect.Type
}

func (k keyToken) String() string {
	return k.rtype.String()
}

// tokenFor resolves the table token for a key value.
func tokenFor[T any](key Key[T]) keyToken {
	return keyToken{rtype: reflect.TypeOf(key)}
}
