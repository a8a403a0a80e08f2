package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/insights"
)

const (
	// maxMessageLen stays under Telegram's 4096 limit with room for emoji.
	maxMessageLen = 4000
	// pageSize is the number of ideas per /recent page.
	pageSize = 5
	// listLimit caps search, starred and category listings.
	listLimit = 10
	// buttonLabelLen caps list button labels.
	buttonLabelLen = 32
)

// FormatTags renders tags as "#a #b".
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}

// FormatIdeaCard renders one idea.
func FormatIdeaCard(i *idea.Idea) string {
	var sb strings.Builder

	marker := "💡"
	if i.Starred {
		marker = "⭐"
	}
	fmt.Fprintf(&sb, "%s %s\n", marker, i.DisplayCategory())
	sb.WriteString(i.DisplayText())
	if tags := FormatTags(i.Tags); tags != "" {
		sb.WriteString("\n\n")
		sb.WriteString(tags)
	}
	if i.Input == idea.InputVoice {
		sb.WriteString("\n🎤 from voice")
	}
	return sb.String()
}

// FormatIdeaSaved is the reply after a capture.
func FormatIdeaSaved(i *idea.Idea) string {
	return fmt.Sprintf("✅ Saved to %s\n\n%s", i.DisplayCategory(), FormatIdeaCard(i))
}

func ideaKeyboard(i *idea.Idea) *InlineKeyboardMarkup {
	star := button("⭐ Star", callbackData(ActionStar, i.ID))
	if i.Starred {
		star = button("☆ Unstar", callbackData(ActionUnstar, i.ID))
	}
	return keyboard(
		[]InlineKeyboardButton{star, button("✏️ Edit", callbackData(ActionEdit, i.ID))},
		[]InlineKeyboardButton{
			button("🏷 Category", callbackData(ActionRecat, i.ID)),
			button("🗄 Archive", callbackData(ActionArchive, i.ID)),
		},
	)
}

// FormatDraftPrompt asks whether to keep a confirm-mode draft.
func FormatDraftPrompt(d conversation.Draft) string {
	return fmt.Sprintf("📝 Save this idea?\n\n“%s”", d.Text)
}

func draftKeyboard(token string) *InlineKeyboardMarkup {
	return keyboard([]InlineKeyboardButton{
		button("💾 Save", callbackData(ActionConfirmSave, token)),
		button("✏️ Edit", callbackData(ActionConfirmEdit, token)),
		button("🗑 Discard", callbackData(ActionConfirmDiscard, token)),
	})
}

// FormatEditPrompt asks for replacement text.
func FormatEditPrompt(current string) string {
	return fmt.Sprintf("✏️ Send the new text for this idea.\n\nCurrent:\n“%s”\n\n/cancel to keep it.", current)
}

func cancelKeyboard(ideaID string) *InlineKeyboardMarkup {
	if ideaID == "" {
		return keyboard([]InlineKeyboardButton{button("✖️ Cancel", ActionCancel)})
	}
	return keyboard([]InlineKeyboardButton{button("✖️ Cancel", callbackData(ActionCancel, ideaID))})
}

// FormatRecatPrompt introduces the category picker.
func FormatRecatPrompt(i *idea.Idea) string {
	return fmt.Sprintf("🏷 Pick a category for:\n“%s”\n\nCurrently: %s",
		truncateText(i.DisplayText(), 200), i.DisplayCategory())
}

func recatKeyboard(i *idea.Idea, categories []string) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	var row []InlineKeyboardButton
	for _, c := range categories {
		label := c
		if strings.EqualFold(c, i.DisplayCategory()) {
			label = "• " + c
		}
		row = append(row, button(label, callbackData(ActionSetCat, i.ID, c)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []InlineKeyboardButton{button("✖️ Cancel", callbackData(ActionCancel, i.ID))})
	return keyboard(rows...)
}

// FormatIdeaList renders a numbered list starting at offset+1.
func FormatIdeaList(title string, ideas []*idea.Idea, offset int) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	for n, i := range ideas {
		fmt.Fprintf(&sb, "\n%d. [%s] %s", offset+n+1, i.DisplayCategory(), truncateText(i.DisplayText(), 160))
		if i.Starred {
			sb.WriteString(" ⭐")
		}
	}
	return sb.String()
}

// FormatPage renders one /recent page.
func FormatPage(ideas []*idea.Idea, offset, total int) string {
	if total == 0 || len(ideas) == 0 {
		return "📭 No ideas yet. Send me a thought as text or a voice note."
	}
	title := fmt.Sprintf("🕒 Recent ideas (%d-%d of %d)", offset+1, offset+len(ideas), total)
	return FormatIdeaList(title, ideas, offset)
}

// pageNav reports which navigation buttons a page gets.
func pageNav(count, offset, total int) (prev, next bool) {
	return offset > 0, count == pageSize && offset+pageSize < total
}

func pageKeyboard(ideas []*idea.Idea, offset, total int) *InlineKeyboardMarkup {
	rows := viewRows(ideas, offset)

	var nav []InlineKeyboardButton
	prev, next := pageNav(len(ideas), offset, total)
	if prev {
		nav = append(nav, button("⬅️ Prev", browseData(max(offset-pageSize, 0))))
	}
	if next {
		nav = append(nav, button("Next ➡️", browseData(offset+pageSize)))
	}
	rows = append(rows, nav)
	return keyboard(rows...)
}

func listKeyboard(ideas []*idea.Idea) *InlineKeyboardMarkup {
	return keyboard(viewRows(ideas, 0)...)
}

func viewRows(ideas []*idea.Idea, offset int) [][]InlineKeyboardButton {
	rows := make([][]InlineKeyboardButton, 0, len(ideas)+1)
	for n, i := range ideas {
		label := fmt.Sprintf("%d. %s", offset+n+1, truncateText(i.DisplayText(), buttonLabelLen))
		rows = append(rows, []InlineKeyboardButton{button(label, callbackData(ActionView, i.ID))})
	}
	return rows
}

// FormatNoResults is the reply to a search with no matches.
func FormatNoResults(query string) string {
	return fmt.Sprintf("🔍 No ideas found for “%s”.", query)
}

// FormatSearchPrompt asks for a search query.
func FormatSearchPrompt() string {
	return "🔍 What should I search for? Send a word or phrase.\n\n/cancel to stop."
}

// FormatCategories lists the user's categories.
func FormatCategories(categories []string) string {
	if len(categories) == 0 {
		return "🗂 No categories yet. They appear as you capture ideas."
	}
	var sb strings.Builder
	sb.WriteString("🗂 Your categories\n")
	for _, c := range categories {
		fmt.Fprintf(&sb, "\n• %s", c)
	}
	sb.WriteString("\n\nUse /category <name> to list one.")
	return sb.String()
}

// FormatStats renders the stats screen.
func FormatStats(s *idea.Stats, windowDays int) string {
	var sb strings.Builder
	sb.WriteString("📊 Your ideas\n\n")
	fmt.Fprintf(&sb, "Total: %d\n", s.Total)
	fmt.Fprintf(&sb, "Last %d days: %d\n", windowDays, s.ThisPeriod)
	fmt.Fprintf(&sb, "Starred: %d\n", s.Starred)
	fmt.Fprintf(&sb, "From voice: %d", s.Voice)

	if len(s.TopCategories) > 0 {
		sb.WriteString("\n\nTop categories:")
		for _, c := range s.TopCategories {
			fmt.Fprintf(&sb, "\n• %s: %d", c.Category, c.Count)
		}
	}
	return sb.String()
}

// FormatInsights renders an insights report.
func FormatInsights(r *insights.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💡 Insights from your last %d ideas\n", r.IdeaCount)

	sb.WriteString("\nThemes:")
	for _, t := range r.Insights.Themes {
		fmt.Fprintf(&sb, "\n• %s", t)
	}
	if len(r.Insights.Connections) > 0 {
		sb.WriteString("\n\nConnections:")
		for _, c := range r.Insights.Connections {
			fmt.Fprintf(&sb, "\n• %s", c)
		}
	}
	fmt.Fprintf(&sb, "\n\n%s", r.Insights.Observation)
	return sb.String()
}

// FormatDigest wraps an insights report for the weekly push.
func FormatDigest(r *insights.Report) string {
	return "📬 Your weekly idea digest\n\n" + FormatInsights(r) + "\n\nTurn this off in /settings."
}

// FormatNotEnoughIdeas explains why no insights were generated.
func FormatNotEnoughIdeas(have int) string {
	return fmt.Sprintf("💡 I need at least %d ideas from the last week for insights. You have %d so far.",
		insights.MinIdeas, have)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// FormatSettings renders the settings screen.
func FormatSettings(s idea.Settings) string {
	capture := "▶️ active"
	if s.Paused {
		capture = "⏸ paused"
	}
	return fmt.Sprintf("⚙️ Settings\n\nCapture: %s\nAsk before saving: %s\nWeekly digest: %s",
		capture, onOff(s.ConfirmMode), onOff(s.DigestEnabled))
}

func settingsKeyboard(s idea.Settings) *InlineKeyboardMarkup {
	pause := button("⏸ Pause capture", ActionSettingsPause)
	if s.Paused {
		pause = button("▶️ Resume capture", ActionSettingsPause)
	}
	return keyboard(
		[]InlineKeyboardButton{pause},
		[]InlineKeyboardButton{button("✅ Ask before saving: "+onOff(s.ConfirmMode), ActionSettingsConfirm)},
		[]InlineKeyboardButton{button("📬 Weekly digest: "+onOff(s.DigestEnabled), ActionSettingsDigest)},
		[]InlineKeyboardButton{button("⬅️ Back", ActionSettingsBack)},
	)
}

// FormatOnboarding greets a new user.
func FormatOnboarding(firstName string) string {
	name := firstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hi %s!\n\n"+
		"Send me any idea as text or a voice note and I'll file it with a category and tags.\n\n"+
		"How should I save your ideas?", name)
}

func onboardingKeyboard() *InlineKeyboardMarkup {
	return keyboard([]InlineKeyboardButton{
		button("⚡ Save instantly", ActionOnboardInstant),
		button("✅ Ask me first", ActionOnboardConfirm),
	})
}

// FormatOnboarded confirms the onboarding choice.
func FormatOnboarded(confirm bool) string {
	mode := "I'll save ideas as soon as you send them."
	if confirm {
		mode = "I'll ask before saving each idea."
	}
	return "🎉 You're all set. " + mode + "\n\nSend your first idea now, or /help for more."
}

// FormatMenu is the main menu header.
func FormatMenu() string {
	return "📋 Menu"
}

func menuKeyboard() *InlineKeyboardMarkup {
	return keyboard(
		[]InlineKeyboardButton{button("🕒 Recent", ActionMenuRecent), button("🔍 Search", ActionMenuSearch)},
		[]InlineKeyboardButton{button("⭐ Starred", ActionMenuStarred), button("🗂 Categories", ActionMenuCategories)},
		[]InlineKeyboardButton{button("📊 Stats", ActionMenuStats), button("💡 Insights", ActionMenuInsights)},
		[]InlineKeyboardButton{button("⚙️ Settings", ActionMenuSettings), button("❓ Help", ActionMenuHelp)},
	)
}

// FormatHelp lists the commands.
func FormatHelp() string {
	return `💡 Idea bot

Send any text or voice note and I'll save it as an idea.
Start a message with ? to ask instead of saving.

/recent - browse your latest ideas
/search <words> - find ideas
/starred - starred ideas
/categories - your categories
/category <name> - ideas in one category
/stats - counts and top categories
/insights - themes from the last week
/settings - pause, confirm mode, digest
/pause, /resume - stop or restart capture
/cancel - abandon an edit or search
/menu - buttons for all of the above`
}

// FormatQueryGuidance answers a '?' message.
func FormatQueryGuidance() string {
	return "❓ Messages starting with ? aren't saved.\n\nTo find ideas use /search <words>, or /help for everything I can do."
}

// chunkContent splits content into chunks of at most maxLen bytes,
// preferring paragraph then line breaks.
func chunkContent(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	remaining := content

	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			chunks = append(chunks, remaining)
			break
		}

		breakPoint := maxLen
		if idx := strings.LastIndex(remaining[:maxLen], "\n\n"); idx > maxLen/2 {
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(remaining[:maxLen], "\n"); idx > maxLen/2 {
			breakPoint = idx + 1
		}
		// Never split a multi-byte rune.
		for breakPoint > 0 && !utf8.RuneStart(remaining[breakPoint]) {
			breakPoint--
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:breakPoint]))
		remaining = strings.TrimSpace(remaining[breakPoint:])
	}

	return chunks
}

// truncateText flattens newlines and caps s at maxLen runes.
func truncateText(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
