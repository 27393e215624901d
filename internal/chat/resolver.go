package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/kelwin/soopchat/internal/buildinfo"
)

const resolveEndpoint = "https://live.sooplive.co.kr/afreeca/player_live_api.php"

// RoomDescriptor is the immutable result of a successful Resolve.
//
// ChatNo is the upstream API's own room identifier (CHANNEL.CHATNO),
// distinct from the room id the caller passed to Resolve/Run. The
// wire protocol keeps the two separate: the WebSocket dial path uses
// the caller-supplied id, while the JOIN payload uses ChatNo.
type RoomDescriptor struct {
	Live            bool
	ChatHost        string
	ChatPort        int
	ChatNo          string
	BroadcasterID   string
	BroadcasterName string
	Title           string
	GeoCC           string
	GeoRC           string
	AcceptLanguage  string
	ServiceLanguage string
	QualityPreset   string
}

// WebSocketURL returns the wss:// endpoint for this descriptor, dialed
// under roomID — the same id the caller passed to Resolve/Run, not
// ChatNo. The effective port is ChatPort+1, preserved verbatim from
// the upstream API's own convention.
func (d RoomDescriptor) WebSocketURL(roomID string) string {
	return fmt.Sprintf("wss://%s:%d/Websocket/%s",
		strings.ToLower(d.ChatHost), d.ChatPort+1, roomID)
}

// flexString decodes a JSON field that the upstream API serializes
// inconsistently as either a string or a number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// flexInt decodes a JSON field that the upstream API serializes
// inconsistently as either a number or a numeric string. A missing or
// unparsable field defaults to 0 rather than failing the resolve.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = flexInt(i)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
		*n = flexInt(v)
	}
	return nil
}

type liveAPIResponse struct {
	Channel struct {
		Result     int        `json:"RESULT"`
		ChatDomain string     `json:"CHDOMAIN"`
		ChatPort   flexInt    `json:"CHPT"`
		ChatNo     flexString `json:"CHATNO"`
		BJID       string     `json:"BJID"`
		BJNick     string     `json:"BJNICK"`
		Title      string     `json:"TITLE"`
		GeoCC      string     `json:"geo_cc"`
		GeoRC      string     `json:"geo_rc"`
		AcceptLang string     `json:"acpt_lang"`
		SvcLang    string     `json:"svc_lang"`
		ViewPreset string     `json:"VIEWPRESET"`
	} `json:"CHANNEL"`
}

// Resolver bootstraps a room's chat parameters over HTTP before the
// WebSocket handshake is attempted.
type Resolver struct {
	httpClient *http.Client
	endpoint   string
}

// NewResolver builds a Resolver with a dedicated HTTP/2-capable
// client. A nil client builds one with a 15s timeout, the same
// default the teacher's search providers use.
func NewResolver(httpClient *http.Client) *Resolver {
	if httpClient == nil {
		transport := &http.Transport{}
		_ = http2.ConfigureTransport(transport)
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		}
	}
	return &Resolver{httpClient: httpClient, endpoint: resolveEndpoint}
}

// Resolve issues the form-encoded POST and parses the room's liveness
// and chat parameters. It fails with *NotLiveError if the room is not
// currently broadcasting, or *ResolveError for any network, HTTP
// status, or JSON-shape failure.
func (r *Resolver) Resolve(ctx context.Context, roomID string) (RoomDescriptor, error) {
	reqURL := fmt.Sprintf("%s?bjid=%s", r.endpoint, url.QueryEscape(roomID))

	form := url.Values{
		"bid":          {roomID},
		"bno":          {""},
		"type":         {"live"},
		"confirm_adult": {"false"},
		"player_type":  {"html5"},
		"mode":         {"landing"},
		"from_api":     {"0"},
		"pwd":          {""},
		"stream_type":  {"common"},
		"quality":      {"HD"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return RoomDescriptor{}, &ResolveError{RoomID: roomID, Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RoomDescriptor{}, &ResolveError{RoomID: roomID, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return RoomDescriptor{}, &ResolveError{
			RoomID: roomID,
			Cause:  fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var parsed liveAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return RoomDescriptor{}, &ResolveError{RoomID: roomID, Cause: err}
	}

	if parsed.Channel.Result == 0 {
		return RoomDescriptor{}, &NotLiveError{RoomID: roomID}
	}

	return RoomDescriptor{
		Live:            true,
		ChatHost:        parsed.Channel.ChatDomain,
		ChatPort:        int(parsed.Channel.ChatPort),
		ChatNo:          string(parsed.Channel.ChatNo),
		BroadcasterID:   parsed.Channel.BJID,
		BroadcasterName: parsed.Channel.BJNick,
		Title:           parsed.Channel.Title,
		GeoCC:           parsed.Channel.GeoCC,
		GeoRC:           parsed.Channel.GeoRC,
		AcceptLanguage:  parsed.Channel.AcceptLang,
		ServiceLanguage: parsed.Channel.SvcLang,
		QualityPreset:   parsed.Channel.ViewPreset,
	}, nil
}
