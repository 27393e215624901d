package chat

import "fmt"

// ResolveError wraps a failure to resolve room parameters over HTTP:
// network errors, non-2xx responses, or a malformed JSON body.
type ResolveError struct {
	RoomID string
	Cause  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("chat: resolve room %q: %v", e.RoomID, e.Cause)
}

func (e *ResolveError) Unwrap() error { return e.Cause }

// NotLiveError indicates the resolver succeeded but the room is not
// currently broadcasting (CHANNEL.RESULT == 0). Distinct from
// ResolveError so callers can treat it as "retry later" rather than
// a hard failure.
type NotLiveError struct {
	RoomID string
}

func (e *NotLiveError) Error() string {
	return fmt.Sprintf("chat: room %q is not live", e.RoomID)
}

// HandshakeError indicates the WebSocket upgrade failed.
type HandshakeError struct {
	URL   string
	Cause error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("chat: websocket handshake to %s: %v", e.URL, e.Cause)
}

func (e *HandshakeError) Unwrap() error { return e.Cause }

// FrameFormatError indicates inbound bytes did not begin with STARTER
// or were shorter than the header. Non-fatal per frame: the codec
// returns this, the session logs it at warn level, and the frame is
// dropped without terminating the session.
type FrameFormatError struct {
	Reason string
}

func (e *FrameFormatError) Error() string {
	return "chat: malformed frame: " + e.Reason
}

// ProtocolError indicates a send failure on CONNECT or JOIN. Fatal:
// the session is torn down and Run returns it. A failed PING also
// ends the session, but surfaces only through the DisconnectEvent
// (ErrorKind "protocol_error"). An inbound frame arriving in a state
// that does not expect it raises no error: it is dispatched and the
// state is left unchanged.
type ProtocolError struct {
	Stage string
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("chat: protocol error during %s: %v", e.Stage, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }
