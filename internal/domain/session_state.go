package domain

type SessionState string

const (
	StateDisconnected   SessionState = "disconnected"
	StateConnecting     SessionState = "connecting"
	StateAuthenticating SessionState = "authenticating"
	StateActive         SessionState = "active"
)

type LineCategory string

const (
	CategoryOutput  LineCategory = "output"
	CategoryEvent   LineCategory = "event"
	CategoryError   LineCategory = "error"
	CategoryCommand LineCategory = "command"
	CategoryOracle  LineCategory = "oracle"
)

// Line is one categorized line for a renderer.
type Line struct {
	Category LineCategory
	Text     string
}
