package chat

import "time"

// Kind is the closed set of event kinds a session can dispatch.
type Kind int

const (
	KindRaw Kind = iota
	KindConnect
	KindDisconnect
	KindEnterChatRoom
	KindChat
	KindNotification
	KindTextDonation
	KindVideoDonation
	KindAdBalloonDonation
	KindSubscribe
	KindEmoticon
	KindViewer
	KindExit
	KindEnterInfo
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindEnterChatRoom:
		return "enter_chat_room"
	case KindChat:
		return "chat"
	case KindNotification:
		return "notification"
	case KindTextDonation:
		return "text_donation"
	case KindVideoDonation:
		return "video_donation"
	case KindAdBalloonDonation:
		return "ad_balloon_donation"
	case KindSubscribe:
		return "subscribe"
	case KindEmoticon:
		return "emoticon"
	case KindViewer:
		return "viewer"
	case KindExit:
		return "exit"
	case KindEnterInfo:
		return "enter_info"
	default:
		return "unknown"
	}
}

// KindForType maps a frame's type code to its event kind. Any code
// outside the known table maps to KindUnknown — this is not a
// protocol error.
func KindForType(typeCode string) Kind {
	switch typeCode {
	case TypeConnect:
		return KindConnect
	case TypeEnterChatRoom:
		return KindEnterChatRoom
	case TypeExit:
		return KindExit
	case TypeChat:
		return KindChat
	case TypeDisconnect:
		return KindDisconnect
	case TypeEnterInfo:
		return KindEnterInfo
	case TypeTextDonation:
		return KindTextDonation
	case TypeAdBalloonDonation:
		return KindAdBalloonDonation
	case TypeSubscribe:
		return KindSubscribe
	case TypeNotification:
		return KindNotification
	case TypeVideoDonation:
		return KindVideoDonation
	case TypeEmoticon:
		return KindEmoticon
	case TypeViewer:
		return KindViewer
	default:
		return KindUnknown
	}
}

// Event is implemented by every decoded event variant. At returns the
// session's local wall-clock time when the frame was read (for
// DisconnectEvent, when the session ended), not a field the peer
// sends.
type Event interface {
	Kind() Kind
	At() time.Time
}

// base is embedded by every concrete event to satisfy At().
type base struct {
	receivedAt time.Time
}

func (b base) At() time.Time { return b.receivedAt }

func newBase(at time.Time) base { return base{receivedAt: at} }

// RawEvent carries the untouched bytes of every inbound frame, always
// emitted immediately before that frame's decoded kind.
type RawEvent struct {
	base
	Data []byte
}

func (RawEvent) Kind() Kind { return KindRaw }

// ConnectEvent is the server's acknowledgement of the outbound CONNECT.
type ConnectEvent struct {
	base
	Username string
	Syn      string
}

func (ConnectEvent) Kind() Kind { return KindConnect }

// EnterChatRoomEvent is the server's acknowledgement of the outbound JOIN.
type EnterChatRoomEvent struct {
	base
	StreamerID string
	SynAck     string
}

func (EnterChatRoomEvent) Kind() Kind { return KindEnterChatRoom }

// ChatEvent is a single chat message.
type ChatEvent struct {
	base
	Comment  string
	UserID   string
	Username string
}

func (ChatEvent) Kind() Kind { return KindChat }

// NotificationEvent is a platform-originated notice.
type NotificationEvent struct {
	base
	Text string
}

func (NotificationEvent) Kind() Kind { return KindNotification }

// DonationEvent covers all three donation kinds (text, video, ad
// balloon); Amount stays an opaque string per the wire protocol.
type DonationEvent struct {
	base
	kind       Kind
	Recipient  string
	SenderID   string
	SenderName string
	Amount     string
}

func (d DonationEvent) Kind() Kind { return d.kind }

// EmoticonEvent is a single emoticon use.
type EmoticonEvent struct {
	base
	EmoticonID string
	UserID     string
	Username   string
}

func (EmoticonEvent) Kind() Kind { return KindEmoticon }

// GenericEvent covers kinds this client does not decode further
// (exit, enter_info, subscribe, viewer) and the unknown catch-all. It
// carries the frame's raw segments so a caller that cares can parse
// them itself.
type GenericEvent struct {
	base
	kind     Kind
	Segments []string
}

func (g GenericEvent) Kind() Kind { return g.kind }

// DisconnectEvent is emitted exactly once per session, after the
// WebSocket and keepalive task have been released.
type DisconnectEvent struct {
	base
	Reason    string
	ErrorKind string
}

func (DisconnectEvent) Kind() Kind { return KindDisconnect }

// decodeEvent builds the decoded-kind event for a frame. It never
// fails: a malformed or short frame simply yields empty fields via
// segmentAt's defensive indexing.
func decodeEvent(f Frame, at time.Time) Event {
	b := newBase(at)
	kind := KindForType(f.TypeCode)
	switch kind {
	case KindConnect:
		return ConnectEvent{
			base:     b,
			Username: segmentAt(f.Segments, 1),
			Syn:      segmentAt(f.Segments, 2),
		}
	case KindEnterChatRoom:
		return EnterChatRoomEvent{
			base:       b,
			StreamerID: segmentAt(f.Segments, 2),
			SynAck:     segmentAt(f.Segments, 7),
		}
	case KindChat:
		return ChatEvent{
			base:     b,
			Comment:  segmentAt(f.Segments, 1),
			UserID:   segmentAt(f.Segments, 2),
			Username: segmentAt(f.Segments, 6),
		}
	case KindNotification:
		return NotificationEvent{
			base: b,
			Text: segmentAt(f.Segments, 4),
		}
	case KindTextDonation, KindVideoDonation, KindAdBalloonDonation:
		return DonationEvent{
			base:       b,
			kind:       kind,
			Recipient:  segmentAt(f.Segments, 2),
			SenderID:   segmentAt(f.Segments, 3),
			SenderName: segmentAt(f.Segments, 4),
			Amount:     segmentAt(f.Segments, 5),
		}
	case KindEmoticon:
		return EmoticonEvent{
			base:       b,
			EmoticonID: segmentAt(f.Segments, 3),
			UserID:     segmentAt(f.Segments, 6),
			Username:   segmentAt(f.Segments, 7),
		}
	default:
		return GenericEvent{base: b, kind: kind, Segments: f.Segments}
	}
}

// Handler receives a single dispatched event. Handlers must not
// block; a panicking handler is caught and logged, and the remaining
// handlers for that event still run.
type Handler func(Event)

// Dispatcher holds an insertion-ordered subscription table keyed by
// Kind and emits decoded events synchronously, in registration order,
// on the caller's goroutine.
type Dispatcher struct {
	handlers map[Kind][]Handler
	onPanic  func(kind Kind, r any)
}

// NewDispatcher builds an empty Dispatcher. onPanic, if non-nil, is
// called when a handler panics; it defaults to a no-op so callers
// that don't care about logging don't have to supply one.
func NewDispatcher(onPanic func(kind Kind, r any)) *Dispatcher {
	if onPanic == nil {
		onPanic = func(Kind, any) {}
	}
	return &Dispatcher{
		handlers: make(map[Kind][]Handler),
		onPanic:  onPanic,
	}
}

// Subscribe appends handler to the list for kind.
func (d *Dispatcher) Subscribe(kind Kind, handler Handler) {
	d.handlers[kind] = append(d.handlers[kind], handler)
}

// emit invokes every handler subscribed to evt.Kind(), in registration
// order. Each handler is isolated with recover so one panicking
// handler never prevents the rest from running.
func (d *Dispatcher) emit(evt Event) {
	for _, h := range d.handlers[evt.Kind()] {
		d.invoke(h, evt)
	}
}

func (d *Dispatcher) invoke(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.onPanic(evt.Kind(), r)
		}
	}()
	h(evt)
}
