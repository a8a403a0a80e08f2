package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alekspetrov/ideabot/internal/ai"
	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/insights"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

// DefaultMaxVoiceDuration is the longest voice note accepted.
const DefaultMaxVoiceDuration = 2 * time.Minute

// AI is the provider chain as the handler uses it.
type AI interface {
	Transcribe(ctx context.Context, audio ai.Audio) (string, error)
	Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error)
}

// InsightsGenerator builds an on-demand insights report.
type InsightsGenerator interface {
	Generate(ctx context.Context, profileID string) (*insights.Report, error)
}

// IdeaListener is told about every captured idea.
type IdeaListener interface {
	IdeaCaptured(telegramID int64, i *idea.Idea)
}

// HandlerConfig holds the handler's collaborators and limits
type HandlerConfig struct {
	Bot    Bot
	Store  store.Store
	AI     AI
	States *conversation.Manager

	Insights InsightsGenerator // optional; /insights is disabled without it
	Listener IdeaListener      // optional
	Metrics  *Metrics          // optional

	AllowedIDs       []int64          // empty allows everyone
	MaxVoiceDuration time.Duration    // default: 2m
	StatsWindow      time.Duration    // default: 7 days
	RateLimit        *RateLimitConfig // default: DefaultRateLimitConfig
}

// Handler turns Telegram updates into idea operations
type Handler struct {
	bot         Bot
	store       store.Store
	ai          AI
	states      *conversation.Manager
	insights    InsightsGenerator
	listener    IdeaListener
	metrics     *Metrics
	allowedIDs  map[int64]bool
	maxVoice    time.Duration
	statsWindow time.Duration
	rateLimiter *RateLimiter
	cmdHandler  *CommandHandler
	now         func() time.Time
}

// NewHandler creates a new Telegram update handler
func NewHandler(config *HandlerConfig) *Handler {
	allowedIDs := make(map[int64]bool)
	for _, id := range config.AllowedIDs {
		allowedIDs[id] = true
	}

	maxVoice := config.MaxVoiceDuration
	if maxVoice <= 0 {
		maxVoice = DefaultMaxVoiceDuration
	}
	statsWindow := config.StatsWindow
	if statsWindow <= 0 {
		statsWindow = 7 * 24 * time.Hour
	}

	h := &Handler{
		bot:         config.Bot,
		store:       config.Store,
		ai:          config.AI,
		states:      config.States,
		insights:    config.Insights,
		listener:    config.Listener,
		metrics:     config.Metrics,
		allowedIDs:  allowedIDs,
		maxVoice:    maxVoice,
		statsWindow: statsWindow,
		rateLimiter: NewRateLimiter(config.RateLimit),
		now:         time.Now,
	}
	h.cmdHandler = NewCommandHandler(h)
	return h
}

// updateOrigin returns the chat to reply to and the acting user.
func updateOrigin(u *Update) (int64, *User) {
	switch {
	case u.CallbackQuery != nil:
		var chatID int64
		if m := u.CallbackQuery.Message; m != nil && m.Chat != nil {
			chatID = m.Chat.ID
		}
		if chatID == 0 && u.CallbackQuery.From != nil {
			chatID = u.CallbackQuery.From.ID
		}
		return chatID, u.CallbackQuery.From
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, u.Message.From
	}
	return 0, nil
}

func updateKind(u *Update) string {
	switch {
	case u.CallbackQuery != nil:
		return "callback"
	case u.Message != nil && u.Message.Voice != nil:
		return "voice"
	case u.Message != nil && strings.HasPrefix(u.Message.Text, "/"):
		return "command"
	default:
		return "text"
	}
}

func (h *Handler) isAllowed(chatID, userID int64) bool {
	if len(h.allowedIDs) == 0 {
		return true
	}
	return h.allowedIDs[chatID] || h.allowedIDs[userID]
}

// processUpdate handles one update end to end. Panics and errors stop here:
// the user gets a single line and the process keeps serving.
func (h *Handler) processUpdate(ctx context.Context, update *Update) {
	chatID, from := updateOrigin(update)
	if from == nil || chatID == 0 {
		return
	}

	kind := updateKind(update)
	ctx = logging.ContextWithComponent(ctx, "telegram")
	ctx = logging.ContextWithUserID(ctx, from.ID)
	ctx = logging.ContextWithUpdateID(ctx, update.UpdateID)
	log := logging.WithContext(ctx)

	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			log.Error("Panic while handling update",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			h.reply(ctx, chatID, "❌ Something went wrong. Please try again.")
		}
		h.metrics.observeUpdate(kind, outcome)
	}()

	if !h.isAllowed(chatID, from.ID) {
		outcome = "denied"
		log.Debug("Ignoring update from unauthorized chat/user", slog.Int64("chat_id", chatID))
		return
	}

	if !h.rateLimiter.AllowMessage(chatID) {
		outcome = "rate_limited"
		log.Warn("Rate limit exceeded", slog.Int64("chat_id", chatID))
		if cb := update.CallbackQuery; cb != nil {
			_ = h.bot.AnswerCallback(ctx, cb.ID, "Slow down a little")
			return
		}
		h.reply(ctx, chatID, "⚠️ Too many messages. Please wait a moment before sending more.")
		return
	}

	st, err := h.states.Touch(ctx, store.ProfileInput{
		TelegramID: from.ID,
		Username:   from.Username,
		FirstName:  from.FirstName,
	})
	if err == nil {
		err = h.dispatch(ctx, st, chatID, update)
	}
	if err != nil {
		outcome = "error"
		h.fail(ctx, chatID, err)
	}
}

func (h *Handler) dispatch(ctx context.Context, st conversation.State, chatID int64, update *Update) error {
	if cb := update.CallbackQuery; cb != nil {
		return h.handleCallback(ctx, st, chatID, cb)
	}

	msg := update.Message
	if msg.Voice != nil {
		return h.handleVoice(ctx, st, chatID, msg.Voice)
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "":
		return nil
	case strings.HasPrefix(text, "/"):
		return h.cmdHandler.HandleCommand(ctx, st, chatID, text)
	default:
		return h.handleText(ctx, st, chatID, text)
	}
}

// fail maps err to one user-facing line.
func (h *Handler) fail(ctx context.Context, chatID int64, err error) {
	log := logging.WithContext(ctx)

	var (
		ve *idea.ValidationError
		ex *ai.ExhaustedError
	)
	switch {
	case errors.As(err, &ve):
		log.Debug("Rejected input", slog.String("field", ve.Field), slog.String("reason", ve.Message))
		h.reply(ctx, chatID, "⚠️ "+ve.Message)
	case errors.Is(err, ai.ErrEmptyTranscription):
		log.Info("Empty transcription")
		h.reply(ctx, chatID, "❌ I couldn't make out any words in that voice note. Try again or send it as text.")
	case errors.Is(err, store.ErrNotFound):
		log.Debug("Idea not found", slog.Any("error", err))
		h.reply(ctx, chatID, "❌ That idea no longer exists.")
	case errors.As(err, &ex):
		log.Error("All AI providers failed", slog.String("op", ex.Op), slog.Any("error", err))
		h.reply(ctx, chatID, "❌ The AI service is unavailable right now. Please try again in a moment.")
	default:
		log.Error("Failed to handle update", slog.Any("error", err))
		h.reply(ctx, chatID, "❌ Something went wrong. Please try again.")
	}
}

func (h *Handler) handleText(ctx context.Context, st conversation.State, chatID int64, text string) error {
	route, err := h.states.Route(st.UserID, text, idea.InputText)
	if err != nil {
		return err
	}
	return h.handleRoute(ctx, st, chatID, route, idea.InputText)
}

func (h *Handler) handleRoute(ctx context.Context, st conversation.State, chatID int64, route conversation.Route, input idea.InputKind) error {
	logging.WithContext(ctx).Debug("Routed message", slog.String("route", route.Kind.String()))

	switch route.Kind {
	case conversation.RouteDropped:
		return nil

	case conversation.RouteQuery:
		h.reply(ctx, chatID, FormatQueryGuidance())
		return nil

	case conversation.RouteSearch:
		return h.runSearch(ctx, st, chatID, route.Text)

	case conversation.RouteEditIdea:
		return h.applyEdit(ctx, st, chatID, route.IdeaID, route.Text)

	case conversation.RouteEditDraft:
		return h.presentDraft(ctx, st, chatID, *route.Draft)

	default:
		if route.ConfirmMode {
			d, err := h.states.SetDraft(st.UserID, route.Text, input)
			if err != nil {
				return err
			}
			return h.presentDraft(ctx, st, chatID, d)
		}
		_, err := h.saveIdea(ctx, st, chatID, 0, route.Text, input)
		return err
	}
}

// presentDraft shows the Save/Edit/Discard prompt and remembers it.
func (h *Handler) presentDraft(ctx context.Context, st conversation.State, chatID int64, d conversation.Draft) error {
	msg, err := h.replyWithKeyboard(ctx, chatID, FormatDraftPrompt(d), draftKeyboard(d.Token))
	if err != nil {
		return nil // logged by replyWithKeyboard
	}
	return h.states.SetDraftPrompt(st.UserID, d.Token, msg.MessageID)
}

// saveIdea categorizes and persists text, then shows the saved card. When
// replaceID is set the card replaces that message.
func (h *Handler) saveIdea(ctx context.Context, st conversation.State, chatID, replaceID int64, text string, input idea.InputKind) (*idea.Idea, error) {
	existing, err := h.store.Categories(ctx, st.ProfileID)
	if err != nil {
		return nil, err
	}

	cat, err := h.ai.Categorize(ctx, text, existing)
	if err != nil {
		return nil, err
	}

	saved, err := h.store.CreateIdea(ctx, store.NewIdea{
		ProfileID:  st.ProfileID,
		Input:      input,
		Transcript: text,
		Category:   cat.Category,
		Confidence: cat.Confidence,
		Tags:       cat.Tags,
	})
	if err != nil {
		return nil, err
	}

	logging.WithContext(ctx).Info("Idea captured",
		slog.String("idea_id", saved.ID),
		slog.String("category", saved.Category),
		slog.String("input", string(input)))
	h.metrics.observeCapture(string(input))

	h.replace(ctx, chatID, replaceID, FormatIdeaSaved(saved), ideaKeyboard(saved))

	if h.listener != nil {
		h.listener.IdeaCaptured(st.UserID, saved)
	}
	return saved, nil
}

func (h *Handler) applyEdit(ctx context.Context, st conversation.State, chatID int64, ideaID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return idea.NewValidationError("text", "The new text can't be empty.")
	}

	updated, err := h.store.UpdateIdea(ctx, st.ProfileID, ideaID, store.Update{EditedTranscript: &text})
	if err != nil {
		return err
	}
	_, _ = h.replyWithKeyboard(ctx, chatID, "✏️ Updated\n\n"+FormatIdeaCard(updated), ideaKeyboard(updated))
	return nil
}

func (h *Handler) runSearch(ctx context.Context, st conversation.State, chatID int64, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return idea.NewValidationError("query", "Search needs a word or phrase, e.g. /search pricing")
	}

	found, err := h.store.SearchIdeas(ctx, st.ProfileID, query, listLimit)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		h.reply(ctx, chatID, FormatNoResults(query))
		return nil
	}

	title := fmt.Sprintf("🔍 %d result(s) for “%s”", len(found), query)
	_, _ = h.replyWithKeyboard(ctx, chatID, FormatIdeaList(title, found, 0), listKeyboard(found))
	return nil
}

func (h *Handler) handleVoice(ctx context.Context, st conversation.State, chatID int64, voice *Voice) error {
	// Paused users keep pending edits and searches working by voice.
	if st.Paused && !st.AwaitsInput() {
		logging.WithContext(ctx).Debug("Dropping voice note while paused")
		return nil
	}

	duration := time.Duration(voice.Duration) * time.Second
	if duration > h.maxVoice {
		return idea.ErrVoiceTooLong(duration, h.maxVoice)
	}

	logging.WithContext(ctx).Debug("Received voice", slog.Int("duration", voice.Duration))

	audio, err := h.downloadAudio(ctx, voice.FileID)
	if err != nil {
		return err
	}

	text, err := h.ai.Transcribe(ctx, audio)
	if err != nil {
		return err
	}

	route, err := h.states.Route(st.UserID, text, idea.InputVoice)
	if err != nil {
		return err
	}
	return h.handleRoute(ctx, st, chatID, route, idea.InputVoice)
}

// downloadAudio fetches a voice file into memory.
func (h *Handler) downloadAudio(ctx context.Context, fileID string) (ai.Audio, error) {
	file, err := h.bot.GetFile(ctx, fileID)
	if err != nil {
		return ai.Audio{}, fmt.Errorf("getFile failed: %w", err)
	}
	if file.FilePath == "" {
		return ai.Audio{}, fmt.Errorf("file path not available")
	}

	data, err := h.bot.DownloadFile(ctx, file.FilePath)
	if err != nil {
		return ai.Audio{}, fmt.Errorf("download failed: %w", err)
	}

	return ai.Audio{Data: data, Filename: path.Base(file.FilePath)}, nil
}

// syncSettings persists the toggles. The in-memory state is already
// authoritative, so a failure is logged and the user is not interrupted.
func (h *Handler) syncSettings(ctx context.Context, st conversation.State) {
	if err := h.store.UpdateProfileSettings(ctx, st.ProfileID, st.Settings()); err != nil {
		logging.WithContext(ctx).Warn("Failed to persist settings", slog.Any("error", err))
	}
}

// CleanupRateLimits drops idle rate limit buckets.
func (h *Handler) CleanupRateLimits(maxAge time.Duration) {
	h.rateLimiter.Cleanup(maxAge)
}
