package chat

import (
	"strings"
	"testing"
	"time"
)

func TestDispatcherOrdering(t *testing.T) {
	d := NewDispatcher(nil)
	var order []string

	d.Subscribe(KindChat, func(Event) { order = append(order, "first") })
	d.Subscribe(KindChat, func(Event) { order = append(order, "second") })
	d.Subscribe(KindChat, func(Event) { order = append(order, "third") })

	d.emit(ChatEvent{base: newBase(time.Now()), Comment: "hi"})

	want := "first,second,third"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("handler order = %q, want %q", got, want)
	}
}

func TestDispatcherOnlyInvokesSubscribedKind(t *testing.T) {
	d := NewDispatcher(nil)
	called := false
	d.Subscribe(KindChat, func(Event) { called = true })

	d.emit(NotificationEvent{base: newBase(time.Now()), Text: "hello"})

	if called {
		t.Fatal("handler for KindChat was invoked for a KindNotification event")
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := NewDispatcher(nil)
	var ran []string

	d.Subscribe(KindChat, func(Event) {
		ran = append(ran, "panics")
		panic("boom")
	})
	d.Subscribe(KindChat, func(Event) { ran = append(ran, "still runs") })

	d.emit(ChatEvent{base: newBase(time.Now())})

	want := "panics,still runs"
	if got := strings.Join(ran, ","); got != want {
		t.Fatalf("ran = %q, want %q", got, want)
	}
}

func TestDispatcherReportsPanic(t *testing.T) {
	var reportedKind Kind
	var reportedVal any
	d := NewDispatcher(func(kind Kind, r any) {
		reportedKind = kind
		reportedVal = r
	})
	d.Subscribe(KindChat, func(Event) { panic("boom") })

	d.emit(ChatEvent{base: newBase(time.Now())})

	if reportedKind != KindChat {
		t.Errorf("reported kind = %v, want KindChat", reportedKind)
	}
	if reportedVal != "boom" {
		t.Errorf("reported value = %v, want %q", reportedVal, "boom")
	}
}

func TestDecodeEventChat(t *testing.T) {
	frame := Frame{
		TypeCode: TypeChat,
		Segments: []string{"hdr", "hello there", "user7", "", "", "", "Nick"},
	}
	evt := decodeEvent(frame, time.Now())
	chatEvt, ok := evt.(ChatEvent)
	if !ok {
		t.Fatalf("decodeEvent returned %T, want ChatEvent", evt)
	}
	if chatEvt.Comment != "hello there" || chatEvt.UserID != "user7" || chatEvt.Username != "Nick" {
		t.Errorf("got %+v", chatEvt)
	}
}

func TestDecodeEventDonation(t *testing.T) {
	frame := Frame{
		TypeCode: TypeTextDonation,
		Segments: []string{"hdr", "", "bjId", "fromId", "FromNick", "1000"},
	}
	evt := decodeEvent(frame, time.Now())
	donation, ok := evt.(DonationEvent)
	if !ok {
		t.Fatalf("decodeEvent returned %T, want DonationEvent", evt)
	}
	if donation.Kind() != KindTextDonation {
		t.Errorf("Kind() = %v, want KindTextDonation", donation.Kind())
	}
	if donation.Recipient != "bjId" || donation.SenderID != "fromId" ||
		donation.SenderName != "FromNick" || donation.Amount != "1000" {
		t.Errorf("got %+v", donation)
	}
}

func TestDecodeEventNotification(t *testing.T) {
	frame := Frame{
		TypeCode: TypeNotification,
		Segments: []string{"hdr", "", "", "", "server is restarting"},
	}
	evt := decodeEvent(frame, time.Now())
	n, ok := evt.(NotificationEvent)
	if !ok {
		t.Fatalf("decodeEvent returned %T, want NotificationEvent", evt)
	}
	if n.Text != "server is restarting" {
		t.Errorf("Text = %q", n.Text)
	}
}

func TestDecodeEventEmoticon(t *testing.T) {
	frame := Frame{
		TypeCode: TypeEmoticon,
		Segments: []string{"hdr", "", "", "emo42", "", "", "user9", "Fan"},
	}
	evt := decodeEvent(frame, time.Now())
	e, ok := evt.(EmoticonEvent)
	if !ok {
		t.Fatalf("decodeEvent returned %T, want EmoticonEvent", evt)
	}
	if e.EmoticonID != "emo42" || e.UserID != "user9" || e.Username != "Fan" {
		t.Errorf("got %+v", e)
	}
}

func TestDecodeEventUnknownCarriesSegments(t *testing.T) {
	frame := Frame{
		TypeCode: "9999",
		Segments: []string{"hdr", "a", "b"},
	}
	evt := decodeEvent(frame, time.Now())
	g, ok := evt.(GenericEvent)
	if !ok {
		t.Fatalf("decodeEvent returned %T, want GenericEvent", evt)
	}
	if g.Kind() != KindUnknown {
		t.Errorf("Kind() = %v, want KindUnknown", g.Kind())
	}
	if len(g.Segments) != 3 {
		t.Errorf("Segments = %v, want 3 entries", g.Segments)
	}
}
