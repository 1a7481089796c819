package term

import (
	"cmp"
	"fmt"
	"image/color"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/retrotoast/internal/model"
	"github.com/jmylchreest/retrotoast/internal/platform"
	"github.com/jmylchreest/retrotoast/internal/render"
)

// ui is the bubbletea model. All state lives on the adapter, which
// bubbletea only touches from its event loop.
type ui struct {
	a *Adapter
}

func (m ui) Init() tea.Cmd {
	return func() tea.Msg { return wakeMsg{} }
}

func (m ui) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.a.update(msg)
	return m, cmd
}

func (m ui) View() string {
	return m.a.view()
}

func (a *Adapter) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case wakeMsg:
		a.drain()
		return nil

	case tea.WindowSizeMsg:
		a.cols, a.rows = max(msg.Width, 1), max(msg.Height, 2)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return tea.Quit
		case key.Matches(msg, a.keys.Dismiss):
			if h, ok := a.newest(); ok {
				a.deliver(h, platform.Event{Kind: platform.EventDestroyRequested})
			}
		case key.Matches(msg, a.keys.DismissAll):
			for _, h := range slices.Clone(a.order) {
				a.deliver(h, platform.Event{Kind: platform.EventDestroyRequested})
			}
		}

	case tea.MouseMsg:
		a.mouse(msg)
	}

	a.flush()
	return nil
}

func (a *Adapter) mouse(msg tea.MouseMsg) {
	h, x, y, ok := a.windowAt(msg.X, msg.Y)
	if a.hovered != 0 && (!ok || h != a.hovered) {
		prev := a.hovered
		a.hovered = 0
		a.deliver(prev, platform.Event{Kind: platform.EventMouseLeave})
	}
	if !ok {
		return
	}

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		a.hovered = h
		a.deliver(h, platform.Event{Kind: platform.EventMouseDown, X: x, Y: y})
	case msg.Action == tea.MouseActionMotion, msg.Action == tea.MouseActionRelease:
		a.hovered = h
		a.deliver(h, platform.Event{Kind: platform.EventMouseMove, X: x, Y: y})
	}
}

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))

	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// view stacks cards top to bottom at their cell rows.
func (a *Adapter) view() string {
	handles := slices.Clone(a.order)
	slices.SortFunc(handles, func(x, y platform.Handle) int {
		return cmp.Compare(a.windows[x].rect.Y, a.windows[y].rect.Y)
	})

	var b strings.Builder
	row := 0
	for _, h := range handles {
		w := a.windows[h]
		top := w.rect.Y / CellHeight
		if top > row {
			b.WriteString(strings.Repeat("\n", top-row))
			row = top
		}
		card := a.card(w)
		b.WriteString(card)
		b.WriteString("\n")
		row += lipgloss.Height(card)
	}

	if pad := a.rows - 1 - row; pad > 0 {
		b.WriteString(strings.Repeat("\n", pad))
	}
	b.WriteString(a.footer())
	return b.String()
}

func (a *Adapter) footer() string {
	parts := make([]string, 0, len(a.keys.ShortHelp()))
	for _, k := range a.keys.ShortHelp() {
		h := k.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+footerStyle.Render(h.Desc))
	}
	return strings.Join(parts, footerStyle.Render(" • "))
}

type segment struct {
	col   int
	text  string
	style lipgloss.Style
}

// card lays out a frame's text runs on the window's cell grid inside a
// rounded border.
func (a *Adapter) card(w *window) string {
	cols := ceilDiv(w.rect.Width, CellWidth)
	rows := ceilDiv(w.rect.Height, CellHeight)
	innerW, innerH := max(cols-2, 1), max(rows-2, 1)

	lines := make([][]segment, innerH)
	hover := model.HoverNone
	if w.frame != nil {
		hover = w.frame.Hover
		for _, run := range w.frame.Texts {
			r := clamp(run.Rect.Min.Y/CellHeight-1, 0, innerH-1)
			c := clamp(run.Rect.Min.X/CellWidth-1, 0, innerW-1)
			style := lipgloss.NewStyle().Foreground(hexColor(run.Color))
			if run.Kind == render.TextTitle || (run.Kind == render.TextClose && hover == model.HoverClose) {
				style = style.Bold(true)
			}
			lines[r] = append(lines[r], segment{col: c, text: run.Text, style: style})
		}
	}

	out := make([]string, innerH)
	for i, segs := range lines {
		out[i] = composeLine(segs, innerW)
	}

	style := borderStyle.Width(innerW)
	if hover != model.HoverNone {
		style = style.BorderForeground(lipgloss.Color("12"))
	}
	return style.MarginLeft(max(w.rect.X/CellWidth, 0)).Render(strings.Join(out, "\n"))
}

// composeLine places segments at their columns, truncating any that run
// into the next segment or past width.
func composeLine(segs []segment, width int) string {
	slices.SortFunc(segs, func(x, y segment) int { return cmp.Compare(x.col, y.col) })

	var b strings.Builder
	pos := 0
	for i, s := range segs {
		if s.col < pos {
			s.col = pos
		}
		limit := width
		if i+1 < len(segs) {
			limit = min(limit, max(segs[i+1].col-1, s.col))
		}
		text := []rune(s.text)
		if n := limit - s.col; len(text) > n {
			text = text[:max(n, 0)]
		}
		if len(text) == 0 {
			continue
		}
		b.WriteString(strings.Repeat(" ", s.col-pos))
		b.WriteString(s.style.Render(string(text)))
		pos = s.col + len(text)
	}
	return b.String()
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
