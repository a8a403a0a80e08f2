package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

const staleNotice = "Already handled"

// handleCallback dispatches an inline button press. The callback is always
// answered so the client stops its spinner.
func (h *Handler) handleCallback(ctx context.Context, st conversation.State, chatID int64, cq *CallbackQuery) error {
	cb := ParseCallback(cq.Data)

	var msgID int64
	if cq.Message != nil {
		msgID = cq.Message.MessageID
	}

	notice := ""
	defer func() {
		if err := h.bot.AnswerCallback(ctx, cq.ID, notice); err != nil {
			logging.WithContext(ctx).Debug("Failed to answer callback", slog.Any("error", err))
		}
	}()

	logging.WithContext(ctx).Debug("Callback received",
		slog.String("action", cb.Action), slog.String("id", cb.ID))

	if offset, ok := cb.BrowseOffset(); ok {
		return h.showRecent(ctx, st, chatID, offset, msgID)
	}

	switch cb.Action {
	case ActionStar, ActionUnstar, ActionEdit, ActionArchive, ActionRecat, ActionSetCat, ActionView:
		if cb.ID == "" {
			notice = "Unknown action"
			return nil
		}
		var err error
		notice, err = h.handleIdeaAction(ctx, st, chatID, msgID, cb)
		return err

	case ActionCancel:
		if cb.ID != "" {
			// Back out of the category picker.
			i, err := h.store.GetIdea(ctx, st.ProfileID, cb.ID)
			if err != nil {
				return err
			}
			h.replace(ctx, chatID, msgID, FormatIdeaCard(i), ideaKeyboard(i))
			return nil
		}
		if _, err := h.states.Clear(st.UserID); err != nil {
			return err
		}
		h.replace(ctx, chatID, msgID, "✖️ Cancelled.", nil)
		return nil

	case ActionConfirmSave:
		d, ok := h.states.TakeDraft(st.UserID, cb.ID)
		if !ok {
			notice = staleNotice
			return nil
		}
		if _, err := h.saveIdea(ctx, st, chatID, msgID, d.Text, d.Input); err != nil {
			// The prompt keeps its buttons, so Save can be pressed again.
			if !h.states.RestoreDraft(st.UserID, d) {
				logging.WithContext(ctx).Warn("Draft not restored after failed save")
			}
			return err
		}
		return nil

	case ActionConfirmEdit:
		d, ok := h.states.BeginDraftEdit(st.UserID, cb.ID, msgID)
		if !ok {
			notice = staleNotice
			return nil
		}
		h.replace(ctx, chatID, msgID, FormatEditPrompt(d.Text), cancelKeyboard(""))
		return nil

	case ActionConfirmDiscard:
		if _, ok := h.states.TakeDraft(st.UserID, cb.ID); !ok {
			notice = staleNotice
			return nil
		}
		h.deleteMessage(ctx, chatID, msgID)
		notice = "Discarded"
		return nil

	case ActionMenuRecent:
		return h.showRecent(ctx, st, chatID, 0, 0)
	case ActionMenuSearch:
		return h.promptSearch(ctx, st, chatID)
	case ActionMenuStarred:
		return h.showStarred(ctx, st, chatID)
	case ActionMenuCategories:
		return h.showCategories(ctx, st, chatID)
	case ActionMenuStats:
		return h.showStats(ctx, st, chatID)
	case ActionMenuInsights:
		return h.showInsights(ctx, st, chatID)
	case ActionMenuSettings:
		h.showSettings(ctx, st, chatID, msgID)
		return nil
	case ActionMenuHelp:
		h.reply(ctx, chatID, FormatHelp())
		return nil

	case ActionSettingsPause, ActionSettingsConfirm, ActionSettingsDigest:
		return h.toggleSetting(ctx, st, chatID, msgID, cb.Action)
	case ActionSettingsBack:
		h.showMenu(ctx, chatID, msgID)
		return nil

	case ActionOnboardInstant, ActionOnboardConfirm:
		return h.finishOnboarding(ctx, st, chatID, msgID, cb.Action == ActionOnboardConfirm)

	default:
		logging.WithContext(ctx).Debug("Unknown callback action", slog.String("data", cq.Data))
		notice = "Unknown action"
		return nil
	}
}

// handleIdeaAction runs the per-idea buttons and returns the toast text.
func (h *Handler) handleIdeaAction(ctx context.Context, st conversation.State, chatID, msgID int64, cb Callback) (string, error) {
	switch cb.Action {
	case ActionStar, ActionUnstar:
		starred := cb.Action == ActionStar
		i, err := h.store.UpdateIdea(ctx, st.ProfileID, cb.ID, store.Update{Starred: &starred})
		if err != nil {
			return "", err
		}
		h.replace(ctx, chatID, msgID, FormatIdeaCard(i), ideaKeyboard(i))
		if starred {
			return "⭐ Starred", nil
		}
		return "Unstarred", nil

	case ActionEdit:
		i, err := h.store.GetIdea(ctx, st.ProfileID, cb.ID)
		if err != nil {
			return "", err
		}
		prompt, err := h.replyWithKeyboard(ctx, chatID, FormatEditPrompt(i.DisplayText()), cancelKeyboard(""))
		if err != nil {
			return "", nil // logged by replyWithKeyboard
		}
		return "", h.states.BeginEdit(st.UserID, i.ID, prompt.MessageID)

	case ActionArchive:
		archived := true
		if _, err := h.store.UpdateIdea(ctx, st.ProfileID, cb.ID, store.Update{Archived: &archived}); err != nil {
			return "", err
		}
		h.replace(ctx, chatID, msgID, "🗄 Archived.", nil)
		return "Archived", nil

	case ActionRecat:
		i, err := h.store.GetIdea(ctx, st.ProfileID, cb.ID)
		if err != nil {
			return "", err
		}
		learned, err := h.store.Categories(ctx, st.ProfileID)
		if err != nil {
			return "", err
		}
		h.replace(ctx, chatID, msgID, FormatRecatPrompt(i), recatKeyboard(i, idea.MergeCategories(learned)))
		return "", nil

	case ActionSetCat:
		category := strings.TrimSpace(cb.Extra)
		if category == "" {
			return "", idea.NewValidationError("category", "Pick a category from the list.")
		}
		i, err := h.store.UpdateIdea(ctx, st.ProfileID, cb.ID, store.Update{EditedCategory: &category})
		if err != nil {
			return "", err
		}
		h.replace(ctx, chatID, msgID, FormatIdeaCard(i), ideaKeyboard(i))
		return "Moved to " + category, nil

	default: // ActionView
		i, err := h.store.GetIdea(ctx, st.ProfileID, cb.ID)
		if err != nil {
			return "", err
		}
		_, _ = h.replyWithKeyboard(ctx, chatID, FormatIdeaCard(i), ideaKeyboard(i))
		return "", nil
	}
}

func (h *Handler) toggleSetting(ctx context.Context, st conversation.State, chatID, msgID int64, action string) error {
	var err error
	switch action {
	case ActionSettingsPause:
		st, err = h.states.TogglePaused(st.UserID)
	case ActionSettingsConfirm:
		st, err = h.states.ToggleConfirm(st.UserID)
	case ActionSettingsDigest:
		st, err = h.states.ToggleDigest(st.UserID)
	}
	if err != nil {
		return err
	}

	h.syncSettings(ctx, st)
	h.showSettings(ctx, st, chatID, msgID)
	return nil
}

func (h *Handler) finishOnboarding(ctx context.Context, st conversation.State, chatID, msgID int64, confirm bool) error {
	st, err := h.states.SetConfirm(st.UserID, confirm)
	if err != nil {
		return err
	}
	h.syncSettings(ctx, st)

	if err := h.store.MarkOnboarded(ctx, st.ProfileID); err != nil {
		logging.WithContext(ctx).Warn("Failed to mark profile onboarded", slog.Any("error", err))
	}

	h.replace(ctx, chatID, msgID, FormatOnboarded(confirm), nil)
	return nil
}
