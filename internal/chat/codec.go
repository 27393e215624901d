package chat

import (
	"fmt"
	"strings"
)

// Type codes for outbound recipes and the inbound kind table.
const (
	TypePing              = "0000"
	TypeConnect           = "0001"
	TypeEnterChatRoom     = "0002"
	TypeExit              = "0004"
	TypeChat              = "0005"
	TypeDisconnect        = "0007"
	TypeEnterInfo         = "0012"
	TypeTextDonation      = "0018"
	TypeAdBalloonDonation = "0087"
	TypeSubscribe         = "0093"
	TypeNotification      = "0104"
	TypeVideoDonation     = "0105"
	TypeEmoticon          = "0109"
	TypeViewer            = "0127"
)

// Frame is a single decoded protocol message.
//
// Payload is the byte sequence strictly after the 14-byte header; it
// is what the outbound-recipe round-trip property in the wire protocol
// tests against (its UTF-8 byte length must match the header's length
// field).
//
// Segments is the result of splitting the entire raw frame — header
// included — on SEPARATOR. Every inbound payload recipe in this
// protocol begins with a SEPARATOR byte, so segments[0] is always the
// (SEPARATOR-free) header text and is never read; real fields start
// at segments[1]. This mirrors the reference client, which always
// split the complete raw packet string rather than a header-stripped
// payload.
type Frame struct {
	TypeCode string
	Payload  []byte
	Segments []string
}

// EncodeFrame builds the wire bytes for a frame: STARTER, the 4-digit
// type code, the 6-digit zero-padded UTF-8 byte length of payload,
// the "00" trailer, then payload itself.
func EncodeFrame(typeCode string, payload []byte) []byte {
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, starterESC, starterTAB)
	buf = append(buf, []byte(typeCode)...)
	buf = append(buf, []byte(fmt.Sprintf("%06d", len(payload)))...)
	buf = append(buf, '0', '0')
	buf = append(buf, payload...)
	return buf
}

// DecodeFrame parses a raw inbound message. It fails with
// *FrameFormatError if the message does not begin with STARTER or is
// shorter than the fixed header; it never fails for any other reason,
// since segment extraction is defensive by position.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 2 || raw[0] != starterESC || raw[1] != starterTAB {
		return Frame{}, &FrameFormatError{Reason: "missing STARTER prefix"}
	}
	if len(raw) < headerLen {
		return Frame{}, &FrameFormatError{Reason: "frame shorter than header"}
	}

	typeCode := string(raw[2:6])
	payload := raw[headerLen:]
	segments := strings.Split(string(raw), separatorString)

	return Frame{
		TypeCode: typeCode,
		Payload:  payload,
		Segments: segments,
	}, nil
}

// segmentAt returns segments[i], or "" if i is out of range. Every
// per-kind extractor below goes through this so a short or malformed
// payload never panics.
func segmentAt(segments []string, i int) string {
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}

// EncodeConnect builds the outbound CONNECT frame: payload =
// SEPARATOR*3 + "16" + SEPARATOR.
func EncodeConnect() []byte {
	payload := []byte{separator, separator, separator, '1', '6', separator}
	return EncodeFrame(TypeConnect, payload)
}

// EncodeJoin builds the outbound JOIN frame (wire type "0002", the
// same ENTER_CHAT_ROOM code used for the server's acknowledgement):
// payload = SEPARATOR + chat_no + SEPARATOR*5. chatNo is the
// resolver's CHATNO, not the caller-supplied room id used to dial the
// WebSocket.
func EncodeJoin(chatNo string) []byte {
	payload := make([]byte, 0, 1+len(chatNo)+5)
	payload = append(payload, separator)
	payload = append(payload, []byte(chatNo)...)
	for i := 0; i < 5; i++ {
		payload = append(payload, separator)
	}
	return EncodeFrame(TypeEnterChatRoom, payload)
}

// EncodePing builds the outbound PING frame: payload = SEPARATOR.
func EncodePing() []byte {
	return EncodeFrame(TypePing, []byte{separator})
}
