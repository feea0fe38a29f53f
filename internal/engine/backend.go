package engine

// RequestID correlates a request with its reply.
type RequestID int32

// Notification is the request id reserved for unsolicited engine messages.
// It is never assigned to an outgoing request.
const Notification RequestID = 0

// PacketHandler receives every packet the engine emits: replies tagged with
// the id of the originating request and notifications tagged Notification.
// The packet is only valid for the duration of the call.
//
// The returned error is the error of any reply handler that ran; backends
// propagate it to whatever invoked them.
type PacketHandler func(id RequestID, packet []byte) error

// Driver creates engine instances.
type Driver interface {
	// Open creates an engine that delivers packets to h. options is one
	// encoded bundle of option messages. The driver must not retain
	// options after Open returns.
	Open(h PacketHandler, options []byte) (Backend, error)
}

// Backend is one live engine instance.
//
// Implementations report failures as *BackendError; the session translates
// them into the fault taxonomy. Every method must be safe to call
// concurrently with packet delivery.
type Backend interface {
	Start() error
	Stop() error

	// Send hands one complete packet to the engine. The engine must not
	// retain packet after Send returns.
	Send(packet []byte) error

	// CurrentTime returns the engine clock in seconds.
	CurrentTime() Time

	// Close releases the engine. No packets are delivered after it returns.
	Close() error
}
