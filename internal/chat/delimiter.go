// Package chat implements a read-only client for a live-streaming
// platform's chat protocol: session bootstrap over HTTP, a WebSocket
// handshake into the chat endpoint, a framed binary wire protocol, a
// keepalive discipline, and a synchronous event-dispatch surface.
package chat

// Delimiter bytes used by the wire protocol. ELEMENT_START, ELEMENT_END,
// and SPACE are reserved for nested payloads the protocol never surfaces
// at this layer; they are kept here for documentation and are not parsed.
const (
	starterESC   byte = 0x1B // ESC
	starterTAB   byte = 0x09 // TAB
	separator    byte = 0x0C // FF, delimits payload fields
	elementStart byte = 0x11 // DC1, reserved
	elementEnd   byte = 0x12 // DC2, reserved
	spaceByte    byte = 0x06 // ACK, reserved
)

// separatorString is the single-byte separator as a string, for strings.Split.
var separatorString = string([]byte{separator})

// headerLen is the byte length of STARTER(2) + type_code(4) + length(6) + "00"(2).
const headerLen = 2 + 4 + 6 + 2
