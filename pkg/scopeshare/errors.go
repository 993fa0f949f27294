package scopeshare

import (
	"errors"
	"fmt"
)

// ErrSubscriptionClosed is returned by Subscription.Next after Cancel.
// No value is ever delivered once a subscription has been cancelled, even if
// emissions were still queued at that point.
var ErrSubscriptionClosed = errors.New("scopeshare: subscription closed")

// Misuse panic codes. These mark call graphs that are wired up incorrectly
// at development time; none of them is reachable through the sanctioned API
// surface, so they are fatal assertions rather than recoverable errors.
const (
	// codeDefaultScopeWrite: a write-restricted path attempted to write to
	// the default sentinel scope.
	codeDefaultScopeWrite = "E001"

	// codeTypeMismatch: a stored value does not match the key's value type.
	codeTypeMismatch = "E002"

	// codeUnknownCallSite: the runtime could not resolve a scope call site.
	codeUnknownCallSite = "E003"

	// codeEmptyScopeName: NamedScope was called with an empty token.
	codeEmptyScopeName = "E004"
)

// misuse formats a coded panic message for programmer errors.
func misuse(code, format string, args ...any) string {
	return fmt.Sprintf("[SHARE %s] %s", code, fmt.Sprintf(format, args...))
}
