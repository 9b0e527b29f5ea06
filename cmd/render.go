package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
)

func renderSessions(w io.Writer, sessions []types.Session, currentID string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No sessions found"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(sessions))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Category")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Last active")+"\t")
	for _, session := range sessions {
		marker := " "
		if session.ID == currentID {
			marker = "*"
		}
		category := categoryStyle.Render(session.Category)
		if session.Uncategorized() {
			category = dateStyle.Render("-")
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\t\n",
			marker,
			idStyle.Render(session.ID),
			truncate(session.Title, 50),
			category,
			countStyle.Render(fmt.Sprint(len(session.Messages))),
			dateStyle.Render(formatWhen(session.LastMessageAt, time.Now())),
		)
	}
	tw.Flush()
}

func renderGrouping(w io.Writer, grouping conversation.Grouping) {
	for _, group := range grouping.Categories {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", group.Name, len(group.Sessions))))
		for _, session := range group.Sessions {
			fmt.Fprintf(w, "  %s  %s\n", idStyle.Render(session.ID), session.Title)
		}
		fmt.Fprintln(w)
	}
	if len(grouping.Uncategorized) > 0 {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Uncategorized (%d)", len(grouping.Uncategorized))))
		for _, session := range grouping.Uncategorized {
			fmt.Fprintf(w, "  %s  %s\n", idStyle.Render(session.ID), session.Title)
		}
	}
}

func renderTranscript(w io.Writer, session types.Session) {
	fmt.Fprintln(w, headerStyle.Render(session.Title))
	if !session.Uncategorized() {
		fmt.Fprintln(w, categoryStyle.Render(session.Category))
	}
	fmt.Fprintln(w)
	for _, msg := range session.Messages {
		renderMessage(w, msg)
	}
}

func renderMessage(w io.Writer, msg types.Message) {
	speaker := userStyle.Render("You")
	if msg.IsAI {
		speaker = assistantStyle.Render("Assistant")
	}
	fmt.Fprintf(w, "%s %s\n%s\n\n", speaker, dateStyle.Render(msg.CreatedAt.Local().Format("Jan 02 15:04")), msg.Content)
}

func renderUsage(w io.Writer, stats types.UsageStats) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Plan: %s", stats.SubscriptionTier)))
	fmt.Fprintf(w, "Queries used:      %s\n", countStyle.Render(fmt.Sprint(stats.QueriesUsed)))
	fmt.Fprintf(w, "Words used:        %s\n", countStyle.Render(fmt.Sprint(stats.WordsUsed)))
	fmt.Fprintf(w, "Queries remaining: %s\n", remaining(stats.QueriesRemaining))
	if stats.SubscriptionTier == types.TierSilver {
		fmt.Fprintf(w, "Words remaining:   %s\n", remaining(stats.WordsRemaining))
	}
}

func remaining(n int64) string {
	if n == usage.Unlimited {
		return countStyle.Render("unlimited")
	}
	return countStyle.Render(fmt.Sprint(n))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func formatWhen(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.In(now.Location())
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour && t.Day() == now.Day():
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
