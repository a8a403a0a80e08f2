package telegram

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/alekspetrov/ideabot/internal/logging"
)

// Callback actions. Payloads are "action[:id[:extra]]".
const (
	ActionStar    = "star"
	ActionUnstar  = "unstar"
	ActionEdit    = "edit"
	ActionArchive = "archive"
	ActionRecat   = "recat"
	ActionSetCat  = "setcat"
	ActionView    = "view"
	ActionCancel  = "cancel"

	ActionConfirmSave    = "confirm_save"
	ActionConfirmEdit    = "confirm_edit"
	ActionConfirmDiscard = "confirm_discard"

	ActionMenuRecent     = "menu_recent"
	ActionMenuSearch     = "menu_search"
	ActionMenuStarred    = "menu_starred"
	ActionMenuCategories = "menu_categories"
	ActionMenuStats      = "menu_stats"
	ActionMenuInsights   = "menu_insights"
	ActionMenuSettings   = "menu_settings"
	ActionMenuHelp       = "menu_help"

	ActionSettingsPause   = "settings_pause"
	ActionSettingsConfirm = "settings_confirm"
	ActionSettingsDigest  = "settings_digest"
	ActionSettingsBack    = "settings_back"

	ActionOnboardInstant = "onboard_instant"
	ActionOnboardConfirm = "onboard_confirm"

	browsePrefix = "browse_"
)

// Callback is a parsed inline button payload.
type Callback struct {
	Action string
	ID     string
	// Extra is everything after the second separator, rejoined, so values
	// that themselves contain ':' survive.
	Extra string
}

// ParseCallback splits data into action, id and extra.
func ParseCallback(data string) Callback {
	parts := strings.Split(data, ":")
	cb := Callback{Action: parts[0]}
	if len(parts) > 1 {
		cb.ID = parts[1]
	}
	if len(parts) > 2 {
		cb.Extra = strings.Join(parts[2:], ":")
	}
	return cb
}

// BrowseOffset returns the page offset of a browse_<offset> action.
func (c Callback) BrowseOffset() (int, bool) {
	if !strings.HasPrefix(c.Action, browsePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(c.Action, browsePrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func callbackData(action string, parts ...string) string {
	if len(parts) == 0 {
		return action
	}
	return action + ":" + strings.Join(parts, ":")
}

func browseData(offset int) string {
	return browsePrefix + strconv.Itoa(offset)
}

func button(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

// keyboard assembles rows, dropping buttons whose payload Telegram would
// reject and rows left empty.
func keyboard(rows ...[]InlineKeyboardButton) *InlineKeyboardMarkup {
	kb := &InlineKeyboardMarkup{}
	for _, row := range rows {
		var kept []InlineKeyboardButton
		for _, b := range row {
			if len(b.CallbackData) > MaxCallbackDataLen {
				logging.WithComponent("telegram").Warn("Skipping button with oversized callback data",
					slog.String("text", b.Text),
					slog.Int("bytes", len(b.CallbackData)))
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) > 0 {
			kb.InlineKeyboard = append(kb.InlineKeyboard, kept)
		}
	}
	if len(kb.InlineKeyboard) == 0 {
		return nil
	}
	return kb
}
