package interfaces

import "finlink/src/models"

// -----------------------------------------------------------------------------
// IUpdateChannel defines the contract for the persistent push channel.
// -----------------------------------------------------------------------------

type IUpdateChannel interface {

	// Connect opens the push connection for the given user. No-op when
	// already connecting or already open for the same user; an open
	// connection for a different user is closed first.
	Connect(userID string) error

	// -----------------------------------------------------------------------------

	// Disconnect performs a normal-code close, clears the user and all
	// subscriptions, and stops any pending reconnect. Idempotent.
	Disconnect()

	// -----------------------------------------------------------------------------

	// Subscribe registers a callback for one topic. The returned function
	// removes exactly that registration and is idempotent.
	Subscribe(topic string, callback func(models.MUpdateEnvelope)) func()

	// -----------------------------------------------------------------------------

	// RequestUpdate asks the server to push fresh data for a topic.
	// Silently ignored unless the channel is open.
	RequestUpdate(topic string)

	// -----------------------------------------------------------------------------

	// SendHeartbeat sends a keepalive. Silently ignored unless open.
	SendHeartbeat()

	// -----------------------------------------------------------------------------

	// IsConnected reports whether the channel is open.
	IsConnected() bool

	// -----------------------------------------------------------------------------

	// State returns the current lifecycle state.
	State() models.ChannelState
}
