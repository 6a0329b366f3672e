package cliui

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/utils"
)

// QuickSuggestions are the prompts offered before the first message.
var QuickSuggestions = []string{
	"Show me sci-fi recommendations",
	"What's trending right now?",
	"Find action movies",
	"Show my continue watching",
	"Recommend something to watch tonight",
}

const (
	defaultRecommendationsTitle = "Recommended For You"
	defaultTrendingTitle        = "Trending Now"
	trendingSubtitle            = "Popular with viewers this week"
	descriptionWidth            = 120
)

var notificationMarks = map[state.NotificationType]string{
	state.NotificationSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("✓"),
	state.NotificationError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗"),
	state.NotificationWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("!"),
	state.NotificationInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render("i"),
}

// RecommendationsTitle is the heading of the recommendations row.
func RecommendationsTitle(doc state.Document) string {
	if doc.ActiveGenre == nil || *doc.ActiveGenre == "" {
		return defaultRecommendationsTitle
	}
	return capitalize(string(*doc.ActiveGenre)) + " Picks"
}

// TrendingTitle is the heading of the trending row.
func TrendingTitle(doc state.Document) string {
	if doc.TrendingCategory == nil || *doc.TrendingCategory == "" {
		return defaultTrendingTitle
	}
	return *doc.TrendingCategory
}

// RenderDashboard renders the document as a vertical stack of sections.
// visible is the set of notifications currently shown to the viewer, which
// may differ from doc.Notifications while expiry timers run. now is used
// for relative "last watched" times.
func RenderDashboard(doc state.Document, visible []state.Notification, now time.Time) string {
	var sections []string

	if doc.UserProfile != nil {
		sections = append(sections, renderProfile(doc.UserProfile))
	}

	if hero := renderHero(doc); hero != "" {
		sections = append(sections, hero)
	}

	if doc.SearchQuery != nil || len(doc.SearchResults) > 0 || doc.LoadingStates.Search {
		sections = append(sections, renderSearch(doc))
	}

	if len(doc.ContinueWatching) > 0 {
		sections = append(sections, renderContinueWatching(doc.ContinueWatching, now))
	}

	var reason string
	if doc.RecommendationReason != nil {
		reason = *doc.RecommendationReason
	}
	if row := renderRow(RecommendationsTitle(doc), reason, doc.Recommendations, doc.LoadingStates.Recommendations); row != "" {
		sections = append(sections, row)
	}
	if row := renderRow(TrendingTitle(doc), trendingSubtitle, doc.Trending, doc.LoadingStates.Trending); row != "" {
		sections = append(sections, row)
	}

	if len(visible) > 0 {
		sections = append(sections, RenderNotifications(visible))
	}

	if len(sections) == 0 {
		return DimStyle.Render("Nothing on the dashboard yet.") + "\n"
	}

	for i := range sections {
		if i > 0 {
			sections[i] = SectionStyle.Render(sections[i])
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// RenderNotifications renders one line per notification with a mark for
// its type.
func RenderNotifications(list []state.Notification) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Notifications"))
	for _, n := range list {
		mark, ok := notificationMarks[n.Type]
		if !ok {
			mark = notificationMarks[state.NotificationInfo]
		}
		fmt.Fprintf(&b, "\n  %s %s %s", mark, n.Message, DimStyle.Render("["+n.ID+"]"))
	}
	return b.String()
}

func renderProfile(p *state.UserProfile) string {
	line := fmt.Sprintf("%s %s", KeyStyle.Render("Profile:"), ValueStyle.Render(p.Name))
	if p.WatchlistCount > 0 {
		line += DimStyle.Render(fmt.Sprintf("  %d in watchlist", p.WatchlistCount))
	}
	if len(p.Preferences.FavoriteGenres) > 0 {
		genres := make([]string, len(p.Preferences.FavoriteGenres))
		for i, g := range p.Preferences.FavoriteGenres {
			genres[i] = string(g)
		}
		line += DimStyle.Render("  likes " + strings.Join(genres, ", "))
	}
	return line
}

func renderHero(doc state.Document) string {
	c := doc.FeaturedContent
	if c == nil {
		if doc.LoadingStates.Featured {
			return HeroStyle.Render(DimStyle.Render("Loading featured title..."))
		}
		return ""
	}

	lines := []string{}
	if c.MatchPercentage != nil {
		lines = append(lines, AccentStyle.Render(fmt.Sprintf("%.0f%% Match", *c.MatchPercentage)))
	}
	lines = append(lines, TitleStyle.Render(c.Title))
	lines = append(lines, contentMeta(*c, true))
	if c.Description != "" {
		lines = append(lines, utils.Truncate(c.Description, descriptionWidth))
	}
	return HeroStyle.Render(strings.Join(lines, "\n"))
}

func renderSearch(doc state.Document) string {
	var query string
	if doc.SearchQuery != nil {
		query = *doc.SearchQuery
	}

	var heading string
	switch {
	case doc.LoadingStates.Search && len(doc.SearchResults) == 0:
		heading = fmt.Sprintf("Searching for %s...", AccentStyle.Render(quote(query)))
	case len(doc.SearchResults) > 0:
		heading = fmt.Sprintf("Found %d results for %s", len(doc.SearchResults), AccentStyle.Render(quote(query)))
	default:
		heading = fmt.Sprintf("No results for %s", AccentStyle.Render(quote(query)))
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(heading))
	for _, c := range doc.SearchResults {
		b.WriteString("\n")
		b.WriteString(contentLine(c))
	}
	return b.String()
}

func renderContinueWatching(items []state.WatchProgress, now time.Time) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Continue Watching"))
	for _, item := range items {
		title := item.Content.Title
		if item.Episode != "" {
			title += DimStyle.Render(" " + item.Episode)
		}
		fmt.Fprintf(&b, "\n  %s %s %s",
			ProgressBar(item.Progress, 10),
			ValueStyle.Render(title),
			DimStyle.Render(TimeAgo(item.LastWatched, now)),
		)
	}
	return b.String()
}

func renderRow(title, subtitle string, items []state.Content, loading bool) string {
	if len(items) == 0 && !loading {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	if subtitle != "" {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render(subtitle))
	}
	if len(items) == 0 {
		b.WriteString("\n  ")
		b.WriteString(DimStyle.Render("Loading..."))
		return b.String()
	}
	for _, c := range items {
		b.WriteString("\n")
		b.WriteString(contentLine(c))
	}
	return b.String()
}

func contentLine(c state.Content) string {
	line := "  " + ValueStyle.Render(c.Title) + "  " + contentMeta(c, false)
	if c.MatchPercentage != nil {
		line += "  " + AccentStyle.Render(fmt.Sprintf("%.0f%%", *c.MatchPercentage))
	}
	return line
}

func contentMeta(c state.Content, withDuration bool) string {
	parts := []string{AccentStyle.Render(fmt.Sprintf("★ %.1f", c.Rating))}
	if c.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", c.Year))
	}
	if c.Genre != "" {
		parts = append(parts, capitalize(string(c.Genre)))
	}
	if withDuration && c.Duration != "" {
		parts = append(parts, c.Duration)
	}
	if c.Type != "" {
		parts = append(parts, string(c.Type))
	}
	return DimStyle.Render(strings.Join(parts, " · "))
}

// ProgressBar renders percent (0-100) as a bar of the given width.
func ProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return AccentStyle.Render(strings.Repeat("█", filled)) + DimStyle.Render(strings.Repeat("░", width-filled))
}

// TimeAgo formats an RFC 3339 timestamp relative to now. Unparseable
// timestamps are returned unchanged.
func TimeAgo(timestamp string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}

	hours := int(now.Sub(t).Hours())
	days := hours / 24
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days == 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func quote(s string) string {
	return `"` + s + `"`
}
