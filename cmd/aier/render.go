package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
)

// printer renders snapshots for the terminal. Colours are dropped
// automatically when w is not a terminal.
type printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer

	header lipgloss.Style
	muted  lipgloss.Style
	live   lipgloss.Style
	idle   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:        w,
		renderer: r,
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		live:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		idle:     r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
	}
}

// handle renders @username in the agent's colour.
func (p *printer) handle(username, color string) string {
	s := p.renderer.NewStyle().Bold(true)
	if color != "" {
		s = s.Foreground(lipgloss.Color(color))
	}
	return s.Render("@" + username)
}

func (p *printer) status(snap core.Snapshot, logLines int) {
	flag := p.idle.Render("PAUSED")
	if snap.Live {
		flag = p.live.Render("LIVE")
	}

	comments := 0
	for _, post := range snap.Posts {
		comments += len(post.Comments)
	}

	fmt.Fprintln(p.w, p.header.Render("AIER network"))
	fmt.Fprintf(p.w, "   Run flag:   %s\n", flag)
	fmt.Fprintf(p.w, "   Agents:     %d\n", len(snap.Agents))
	fmt.Fprintf(p.w, "   Posts:      %d (%d comments)\n", len(snap.Posts), comments)
	fmt.Fprintf(p.w, "   Narratives: %d\n", len(snap.Narratives))

	for _, n := range snap.Narratives {
		fmt.Fprintf(p.w, "     • %s\n", n)
	}

	if logLines > 0 && len(snap.Logs) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, p.header.Render("Recent log"))
		for _, line := range snap.Logs[:min(logLines, len(snap.Logs))] {
			fmt.Fprintf(p.w, "   %s\n", p.muted.Render(line))
		}
	}
}

func (p *printer) agents(agents []core.Agent) {
	if len(agents) == 0 {
		fmt.Fprintln(p.w, "No agents.")
		return
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tHANDLE\tNAME\tFACTION\tREP")
	for i, a := range agents {
		faction := string(a.Faction)
		if faction == "" {
			faction = "-"
		}
		fmt.Fprintf(tw, "%d\t@%s\t%s\t%s\t%s\n", i+1, a.Username, a.Name, faction, humanize.Comma(int64(a.Reputation)))
	}
	tw.Flush()
}

func (p *printer) posts(snap core.Snapshot, posts []core.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(p.w, "No posts yet.")
		return
	}

	colors := make(map[string]string, len(snap.Agents))
	for _, a := range snap.Agents {
		colors[a.ID] = a.Color
	}

	for i, post := range posts {
		if i > 0 {
			fmt.Fprintln(p.w)
		}

		meta := humanize.Time(post.CreatedAt())
		if post.IsBirthPost {
			meta += " · first signal"
		}
		fmt.Fprintf(p.w, "%s %s\n", p.handle(post.AuthorUsername, colors[post.AuthorID]), p.muted.Render(meta))
		fmt.Fprintf(p.w, "   %s\n", post.Content)
		fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("   ♥ %d  ⟲ %d  💬 %d  👁 %s",
			len(post.Likes), len(post.Retweets), len(post.Comments), humanize.Comma(int64(post.Views)))))

		for _, c := range post.Comments[:min(2, len(post.Comments))] {
			fmt.Fprintf(p.w, "     ↳ %s %s\n", p.handle(c.AuthorUsername, colors[c.AuthorID]), c.Content)
		}
		if extra := len(post.Comments) - 2; extra > 0 {
			fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf("     ↳ %d more", extra)))
		}
	}
}

func (p *printer) analytics(a engine.Analytics) {
	fmt.Fprintln(p.w, p.header.Render("Totals"))
	fmt.Fprintf(p.w, "   Agents %d · Posts %d · Comments %d · Likes %d · Reshares %d · Views %s\n",
		a.TotalAgents, a.TotalPosts, a.TotalComments, a.TotalLikes, a.TotalRetweets, humanize.Comma(int64(a.TotalViews)))

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.header.Render("Top agents"))
	for i, ag := range a.TopAgents {
		fmt.Fprintf(p.w, "   %d. %s %s\n", i+1, p.handle(ag.Username, ag.Color), p.muted.Render(fmt.Sprintf("(%d)", ag.Reputation)))
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.header.Render("Factions"))
	factions := make([]string, 0, len(a.FactionCounts))
	for f := range a.FactionCounts {
		factions = append(factions, string(f))
	}
	slices.Sort(factions)
	for _, f := range factions {
		fmt.Fprintf(p.w, "   %-13s %d\n", f, a.FactionCounts[core.Faction(f)])
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.header.Render("Active themes"))
	if len(a.Narratives) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("   none detected"))
	}
	for _, n := range a.Narratives {
		fmt.Fprintf(p.w, "   • %s\n", strings.TrimSpace(n))
	}
}
