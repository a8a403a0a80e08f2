package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alekspetrov/ideabot/internal/banner"
	"github.com/alekspetrov/ideabot/internal/config"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da")) // steel blue

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e")) // mid gray

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3d4450")). // slate
			Padding(0, 1)
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if _, err := os.Stat(path); err == nil {
				if !force {
					_, _ = fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite)\n", path)
					return nil
				}
				backupPath := path + ".bak"
				if err := os.Rename(path, backupPath); err != nil {
					return fmt.Errorf("failed to backup config: %w", err)
				}
				_, _ = fmt.Fprintf(out, "   📦 Backed up existing config to %s\n\n", backupPath)
			}

			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			banner.PrintWithVersion(out, version)
			_, _ = fmt.Fprintln(out, "   ✅ Initialized!")
			_, _ = fmt.Fprintf(out, "   Config: %s\n\n", path)
			_, _ = fmt.Fprintln(out, "   Next steps:")
			_, _ = fmt.Fprintln(out, "   1. export TELEGRAM_BOT_TOKEN=... (from @BotFather)")
			_, _ = fmt.Fprintln(out, "   2. export GROQ_API_KEY=... and/or OPENAI_API_KEY=...")
			_, _ = fmt.Fprintln(out, "   3. ideabot start")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config (keeps a .bak)")

	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		telegramID int64
		days       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show idea statistics for a Telegram user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ctx := context.Background()
			profile, err := st.GetProfile(ctx, telegramID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no profile for Telegram user %d", telegramID)
			}
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}

			stats, err := st.Stats(ctx, profile.ID, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			if jsonOutput {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal stats: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			renderStats(cmd.OutOrStdout(), profile, stats, days)
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user ID")
	cmd.Flags().IntVar(&days, "days", 7, "Window for the \"recent\" count")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("telegram-id")

	return cmd
}

// renderStats draws a stats panel with a bar per top category.
func renderStats(w io.Writer, profile *idea.Profile, stats *idea.Stats, days int) {
	name := profile.FirstName
	if name == "" {
		name = fmt.Sprintf("%d", profile.TelegramID)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("📊 Ideas for "+name) + "\n\n")
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Total:", stats.Total},
		{fmt.Sprintf("Last %d days:", days), stats.ThisPeriod},
		{"Starred:", stats.Starred},
		{"From voice:", stats.Voice},
	} {
		fmt.Fprintf(&b, "%-15s %d\n", row.label, row.n)
	}

	if len(stats.TopCategories) > 0 {
		b.WriteString("\n" + dimStyle.Render("Top categories") + "\n")

		top := stats.TopCategories[0].Count
		width := 0
		for _, c := range stats.TopCategories {
			width = max(width, lipgloss.Width(c.Category))
		}
		for _, c := range stats.TopCategories {
			bar := strings.Repeat("█", max(1, c.Count*20/max(top, 1)))
			pad := strings.Repeat(" ", width-lipgloss.Width(c.Category))
			fmt.Fprintf(&b, "%s%s  %s %d\n", c.Category, pad, barStyle.Render(bar), c.Count)
		}
	}

	_, _ = fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the weekly insights digest to every subscribed user now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			a, err := newApp(cfg, "")
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.scheduler.RunNow(cmd.Context())
			if err != nil {
				return fmt.Errorf("digest failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "📬 Digest: %d delivered, %d skipped, %d failed\n",
				result.Delivered, result.Skipped, result.Failed)
			return nil
		},
	}
}
