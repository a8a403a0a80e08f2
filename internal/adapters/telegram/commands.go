package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/insights"
)

// CommandHandler processes slash commands. Commands never consume a pending
// edit or search, except /cancel.
type CommandHandler struct {
	handler *Handler
}

// NewCommandHandler creates a command handler
func NewCommandHandler(h *Handler) *CommandHandler {
	return &CommandHandler{handler: h}
}

// parseCommand splits "/cmd@bot args" into "/cmd" and the raw argument text.
func parseCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// HandleCommand routes commands to their handlers
func (c *CommandHandler) HandleCommand(ctx context.Context, st conversation.State, chatID int64, text string) error {
	h := c.handler
	cmd, args := parseCommand(text)

	switch cmd {
	case "/start":
		return c.handleStart(ctx, st, chatID)
	case "/help":
		h.reply(ctx, chatID, FormatHelp())
		return nil
	case "/menu":
		h.showMenu(ctx, chatID, 0)
		return nil
	case "/recent":
		return h.showRecent(ctx, st, chatID, 0, 0)
	case "/search":
		if args == "" {
			return h.promptSearch(ctx, st, chatID)
		}
		return h.runSearch(ctx, st, chatID, args)
	case "/starred":
		return h.showStarred(ctx, st, chatID)
	case "/categories":
		return h.showCategories(ctx, st, chatID)
	case "/category":
		if args == "" {
			return idea.NewValidationError("category", "Usage: /category <name>, e.g. /category Business")
		}
		return h.showCategory(ctx, st, chatID, args)
	case "/stats":
		return h.showStats(ctx, st, chatID)
	case "/insights":
		return h.showInsights(ctx, st, chatID)
	case "/settings":
		h.showSettings(ctx, st, chatID, 0)
		return nil
	case "/pause":
		return c.handlePause(ctx, st, chatID, true)
	case "/resume":
		return c.handlePause(ctx, st, chatID, false)
	case "/cancel":
		return c.handleCancel(ctx, st, chatID)
	default:
		h.reply(ctx, chatID, "Unknown command. Use /help for available commands.")
		return nil
	}
}

// handleStart onboards new profiles and greets returning ones.
func (c *CommandHandler) handleStart(ctx context.Context, st conversation.State, chatID int64) error {
	h := c.handler

	profile, err := h.store.GetProfile(ctx, st.UserID)
	if err != nil {
		return err
	}

	if !profile.Onboarded {
		_, _ = h.replyWithKeyboard(ctx, chatID, FormatOnboarding(profile.FirstName), onboardingKeyboard())
		return nil
	}

	name := profile.FirstName
	if name == "" {
		name = "back"
	}
	_, _ = h.replyWithKeyboard(ctx, chatID,
		fmt.Sprintf("👋 Welcome %s! Send an idea any time.", name), menuKeyboard())
	return nil
}

func (c *CommandHandler) handlePause(ctx context.Context, st conversation.State, chatID int64, paused bool) error {
	h := c.handler

	st, err := h.states.SetPaused(st.UserID, paused)
	if err != nil {
		return err
	}
	h.syncSettings(ctx, st)

	if paused {
		h.reply(ctx, chatID, "⏸ Capture paused. Messages won't be saved until you /resume.")
	} else {
		h.reply(ctx, chatID, "▶️ Capture resumed. Send me your ideas.")
	}
	return nil
}

func (c *CommandHandler) handleCancel(ctx context.Context, st conversation.State, chatID int64) error {
	h := c.handler

	prev, err := h.states.Clear(st.UserID)
	if err != nil {
		return err
	}
	if _, idle := prev.(conversation.Idle); idle {
		h.reply(ctx, chatID, "Nothing to cancel.")
		return nil
	}

	// Strip the buttons from the abandoned prompt.
	if ref := conversation.PromptRef(prev); ref != 0 {
		_ = h.bot.EditMessage(ctx, chatID, ref, "✖️ Cancelled.", nil)
	}
	h.reply(ctx, chatID, "✖️ Cancelled.")
	return nil
}

func (h *Handler) showMenu(ctx context.Context, chatID, editID int64) {
	h.replace(ctx, chatID, editID, FormatMenu(), menuKeyboard())
}

// showRecent renders the page at offset, editing editID when set.
func (h *Handler) showRecent(ctx context.Context, st conversation.State, chatID int64, offset int, editID int64) error {
	st, err := h.states.SetBrowseOffset(st.UserID, offset)
	if err != nil {
		return err
	}

	total, err := h.store.CountIdeas(ctx, st.ProfileID)
	if err != nil {
		return err
	}
	page, err := h.store.RecentIdeas(ctx, st.ProfileID, st.BrowseOffset, pageSize)
	if err != nil {
		return err
	}

	h.replace(ctx, chatID, editID, FormatPage(page, st.BrowseOffset, total), pageKeyboard(page, st.BrowseOffset, total))
	return nil
}

func (h *Handler) promptSearch(ctx context.Context, st conversation.State, chatID int64) error {
	msg, err := h.replyWithKeyboard(ctx, chatID, FormatSearchPrompt(), cancelKeyboard(""))
	if err != nil {
		return nil // logged by replyWithKeyboard
	}
	return h.states.BeginSearch(st.UserID, msg.MessageID)
}

func (h *Handler) showStarred(ctx context.Context, st conversation.State, chatID int64) error {
	starred, err := h.store.StarredIdeas(ctx, st.ProfileID, listLimit)
	if err != nil {
		return err
	}
	if len(starred) == 0 {
		h.reply(ctx, chatID, "⭐ No starred ideas yet. Tap ⭐ Star on any idea to keep it here.")
		return nil
	}
	_, _ = h.replyWithKeyboard(ctx, chatID, FormatIdeaList("⭐ Starred ideas", starred, 0), listKeyboard(starred))
	return nil
}

func (h *Handler) showCategories(ctx context.Context, st conversation.State, chatID int64) error {
	cats, err := h.store.Categories(ctx, st.ProfileID)
	if err != nil {
		return err
	}
	h.reply(ctx, chatID, FormatCategories(cats))
	return nil
}

func (h *Handler) showCategory(ctx context.Context, st conversation.State, chatID int64, name string) error {
	found, err := h.store.IdeasByCategory(ctx, st.ProfileID, name, listLimit)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		h.reply(ctx, chatID, fmt.Sprintf("🗂 No ideas in “%s”. See /categories.", name))
		return nil
	}
	_, _ = h.replyWithKeyboard(ctx, chatID, FormatIdeaList("🗂 "+found[0].DisplayCategory(), found, 0), listKeyboard(found))
	return nil
}

func (h *Handler) showStats(ctx context.Context, st conversation.State, chatID int64) error {
	stats, err := h.store.Stats(ctx, st.ProfileID, h.now().Add(-h.statsWindow))
	if err != nil {
		return err
	}
	h.reply(ctx, chatID, FormatStats(stats, int(h.statsWindow.Hours()/24)))
	return nil
}

func (h *Handler) showInsights(ctx context.Context, st conversation.State, chatID int64) error {
	if h.insights == nil {
		h.reply(ctx, chatID, "💡 Insights are not enabled on this bot.")
		return nil
	}

	report, err := h.insights.Generate(ctx, st.ProfileID)
	var nee *insights.NotEnoughIdeasError
	if errors.As(err, &nee) {
		h.reply(ctx, chatID, FormatNotEnoughIdeas(nee.Have))
		return nil
	}
	if err != nil {
		return err
	}
	h.reply(ctx, chatID, FormatInsights(report))
	return nil
}

func (h *Handler) showSettings(ctx context.Context, st conversation.State, chatID, editID int64) {
	s := st.Settings()
	h.replace(ctx, chatID, editID, FormatSettings(s), settingsKeyboard(s))
}
