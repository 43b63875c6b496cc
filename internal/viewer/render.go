package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	titleOpenIssues   = "Open Issues"
	titleClosedIssues = "Closed Issues"

	commentPrefix  = "--> "
	minColumnWidth = 20
)

// Theme holds the colors used to draw the board.
type Theme struct {
	Heading    lipgloss.Color
	Title      lipgloss.Color
	FaintText  lipgloss.Color
	Toggle     lipgloss.Color
	Comment    lipgloss.Color
	CardBorder lipgloss.Color
	Connected  lipgloss.Color
	Offline    lipgloss.Color
}

// DefaultTheme is tuned for dark terminals.
var DefaultTheme = Theme{
	Heading:    lipgloss.Color("212"),
	Title:      lipgloss.Color("255"),
	FaintText:  lipgloss.Color("245"),
	Toggle:     lipgloss.Color("39"),
	Comment:    lipgloss.Color("150"),
	CardBorder: lipgloss.Color("240"),
	Connected:  lipgloss.Color("42"),
	Offline:    lipgloss.Color("203"),
}

// Renderer draws the board as two side-by-side columns.
type Renderer struct {
	theme Theme
	width int
}

// NewRenderer creates a renderer for a terminal of the given width.
func NewRenderer(theme Theme, width int) Renderer {
	return Renderer{theme: theme, width: width}
}

func (r Renderer) columnWidth() int {
	w := r.width/2 - 2
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

// Render draws the board with a status line underneath.
func (r Renderer) Render(board *Board, state ConnState) string {
	left := r.renderColumn(titleOpenIssues, board.Cards(BucketOpen))
	right := r.renderColumn(titleClosedIssues, board.Cards(BucketClosed))
	columns := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	return lipgloss.JoinVertical(lipgloss.Left, columns, r.renderStatus(state))
}

func (r Renderer) renderColumn(title string, cards []Card) string {
	width := r.columnWidth()
	headingStyle := lipgloss.NewStyle().
		Foreground(r.theme.Heading).
		Bold(true).
		Width(width)

	blocks := []string{headingStyle.Render(title)}
	if len(cards) == 0 {
		blocks = append(blocks, lipgloss.NewStyle().
			Foreground(r.theme.FaintText).
			Italic(true).
			Width(width).
			Render("(none)"))
	}
	for _, card := range cards {
		blocks = append(blocks, r.RenderCard(card))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderCard draws one issue: title, description, the toggle control and,
// when shown, the comments panel and form indicator.
func (r Renderer) RenderCard(card Card) string {
	inner := r.columnWidth() - 4

	titleStyle := lipgloss.NewStyle().Foreground(r.theme.Title).Bold(true)
	faintStyle := lipgloss.NewStyle().Foreground(r.theme.FaintText)
	toggleStyle := lipgloss.NewStyle().Foreground(r.theme.Toggle)

	lines := []string{
		titleStyle.Render(card.Issue.Title),
		faintStyle.Render("#" + card.Issue.IIDString() + "  id " + card.Issue.ID.String()),
	}
	if card.Issue.Description != "" {
		lines = append(lines, card.Issue.Description)
	}
	lines = append(lines, toggleStyle.Render("["+card.ToggleLabel+"]"))

	if card.CommentsVisible {
		commentStyle := lipgloss.NewStyle().Foreground(r.theme.Comment)
		for _, comment := range card.Comments {
			lines = append(lines, commentStyle.Render(commentPrefix+comment.Body))
		}
	}
	if card.FormVisible {
		lines = append(lines, faintStyle.Render("(writing comment)"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.CardBorder).
		Padding(0, 1).
		Width(inner).
		Render(strings.Join(lines, "\n"))
}

func (r Renderer) renderStatus(state ConnState) string {
	color := r.theme.Offline
	if state == StateOpen {
		color = r.theme.Connected
	}
	return lipgloss.NewStyle().Foreground(color).Render("● " + state.String())
}
