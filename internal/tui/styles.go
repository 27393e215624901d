// Package tui renders decoded chat events as styled terminal lines.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/kelwin/soopchat/internal/chat"
)

var (
	colorWhite     = lipgloss.Color("#FFFFFF")
	colorLightGray = lipgloss.Color("#CCCCCC")
	colorGray      = lipgloss.Color("#888888")
	colorGreen     = lipgloss.Color("#00FF00")
	colorYellow    = lipgloss.Color("#FFFF00")
	colorPurple    = lipgloss.Color("#8524a6")
	colorRed       = lipgloss.Color("#FF0000")
)

var (
	usernameStyle = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
	commentStyle  = lipgloss.NewStyle().Foreground(colorLightGray)
	systemStyle   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	donationStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	connectStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	emoticonStyle = lipgloss.NewStyle().Foreground(colorPurple)
)

// Plain reports whether styling should be skipped — used when stdout
// is not a terminal.
type Plain bool

// Line renders a single decoded event as a human-readable line, or
// the empty string for events this driver doesn't render (raw,
// subscribe, viewer, exit, enter_info).
func Line(evt chat.Event, plain Plain) string {
	switch e := evt.(type) {
	case chat.ChatEvent:
		if plain {
			return fmt.Sprintf("[%s] %s: %s", e.UserID, e.Username, e.Comment)
		}
		return fmt.Sprintf("%s %s %s",
			usernameStyle.Render(e.Username), systemStyle.Render(e.UserID), commentStyle.Render(e.Comment))

	case chat.DonationEvent:
		label := donationLabel(e.Kind())
		if plain {
			return fmt.Sprintf("[%s] %s donated %s", label, e.SenderName, e.Amount)
		}
		return donationStyle.Render(fmt.Sprintf("%s: %s donated %s", label, e.SenderName, e.Amount))

	case chat.NotificationEvent:
		if plain {
			return "[notice] " + e.Text
		}
		return systemStyle.Render("notice: " + e.Text)

	case chat.EmoticonEvent:
		if plain {
			return fmt.Sprintf("[%s] used emoticon %s", e.Username, e.EmoticonID)
		}
		return emoticonStyle.Render(fmt.Sprintf("%s used emoticon %s", e.Username, e.EmoticonID))

	case chat.ConnectEvent:
		if plain {
			return "[connected]"
		}
		return connectStyle.Render("connected to chat room")

	case chat.EnterChatRoomEvent:
		if plain {
			return "[joined]"
		}
		return connectStyle.Render("joined chat room")

	case chat.DisconnectEvent:
		line := "disconnected: " + e.Reason
		if plain {
			return "[" + line + "]"
		}
		return errorStyle.Render(line)

	default:
		return ""
	}
}

func donationLabel(kind chat.Kind) string {
	switch kind {
	case chat.KindTextDonation:
		return "donation"
	case chat.KindVideoDonation:
		return "video donation"
	case chat.KindAdBalloonDonation:
		return "balloon donation"
	default:
		return "donation"
	}
}
