package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/okian/judgeflow/internal/domain/coverage"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/internal/simulate"
)

// Color palette.
var (
	titleColor = lipgloss.Color("12")
	mutedColor = lipgloss.Color("8")
	goodColor  = lipgloss.Color("10")
	warnColor  = lipgloss.Color("11")
	badColor   = lipgloss.Color("9")
)

// styles are bound to the output writer so colors are dropped when the
// writer is not a terminal.
type styles struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(titleColor),
		muted:  r.NewStyle().Foreground(mutedColor),
		good:   r.NewStyle().Foreground(goodColor),
		warn:   r.NewStyle().Foreground(warnColor),
		bad:    r.NewStyle().Foreground(badColor).Bold(true),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
	}
}

func (s styles) table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		}).
		String()
}

func renderPlan(w io.Writer, plan model.GeneratePlan) {
	s := newStyles(w)
	mode := "exclusive"
	if plan.Summary.OverlapMode {
		mode = "overlap"
	}
	fmt.Fprintln(w, s.title.Render("Plan for floor "+plan.FloorID))
	fmt.Fprintln(w, s.muted.Render(fmt.Sprintf("%d available teams, %s mode, %d of %d judges assigned",
		plan.Summary.AvailableTeams, mode, plan.Summary.Created, plan.Summary.Requested)))

	if len(plan.Created) > 0 {
		rows := make([][]string, 0, len(plan.Created))
		for _, pa := range plan.Created {
			var flags []string
			if pa.Relaxed {
				flags = append(flags, "relaxed")
			}
			if pa.Reversed {
				flags = append(flags, "reversed")
			}
			rows = append(rows, []string{
				pa.JudgeName,
				joinInts(pa.TeamNumbers),
				strconv.Itoa(pa.Pressure),
				strconv.Itoa(pa.Closeness),
				strings.Join(flags, ","),
			})
		}
		fmt.Fprintln(w, s.table([]string{"Judge", "Teams", "Pressure", "Closeness", "Notes"}, rows))
	}

	for _, f := range plan.Failures {
		fmt.Fprintln(w, s.warn.Render(fmt.Sprintf("! %s: %s", f.JudgeName, f.Reason)))
	}
	fmt.Fprintln(w, plan.Message())
}

func renderCoverage(w io.Writer, r coverage.Report) {
	s := newStyles(w)
	fmt.Fprintln(w, s.title.Render("Coverage for floor "+r.FloorID))
	if r.Teams == 0 {
		fmt.Fprintln(w, s.muted.Render("no active teams"))
		return
	}

	skew := s.good
	if r.Skew > 1 {
		skew = s.warn
	}
	fmt.Fprintf(w, "teams %d  paused %d  locked %d\n", r.Teams, r.Paused, r.Locked)
	fmt.Fprintf(w, "reviews min %d  max %d  mean %.2f  %s\n",
		r.MinReviews, r.MaxReviews, r.MeanReviews, skew.Render("skew "+strconv.Itoa(r.Skew)))

	counts := make([]int, 0, len(r.Histogram))
	for n := range r.Histogram {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	hist := make([][]string, 0, len(counts))
	for _, n := range counts {
		hist = append(hist, []string{strconv.Itoa(n), strconv.Itoa(r.Histogram[n])})
	}
	fmt.Fprintln(w, s.table([]string{"Reviews", "Teams"}, hist))

	if len(r.Least) > 0 {
		rows := make([][]string, 0, len(r.Least))
		for _, t := range r.Least {
			locked := ""
			if t.Locked {
				locked = "locked"
			}
			rows = append(rows, []string{strconv.Itoa(t.Number), t.Name, strconv.Itoa(t.Reviews), locked})
		}
		fmt.Fprintln(w, s.muted.Render("least reviewed"))
		fmt.Fprintln(w, s.table([]string{"#", "Team", "Reviews", ""}, rows))
	}
}

func renderSimulation(w io.Writer, rep simulate.Report) {
	s := newStyles(w)
	c := rep.Config
	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Simulation: %d teams, %d judges, %d rounds, seed %d",
		c.Teams, c.Judges, c.Rounds, c.Seed)))

	rows := make([][]string, 0, len(rep.Rounds))
	for _, rs := range rep.Rounds {
		mode := "exclusive"
		if rs.Overlap {
			mode = "overlap"
		}
		rows = append(rows, []string{
			strconv.Itoa(rs.Round),
			strconv.Itoa(rs.Created),
			strconv.Itoa(rs.Failed),
			mode,
			fmt.Sprintf("%d-%d", rs.MinReviews, rs.MaxReviews),
			strconv.Itoa(rs.Skew),
		})
	}
	fmt.Fprintln(w, s.table([]string{"Round", "Created", "Failed", "Mode", "Reviews", "Skew"}, rows))

	if len(rep.Violations) == 0 {
		fmt.Fprintln(w, s.good.Render("all plans verified"))
		return
	}
	fmt.Fprintln(w, s.bad.Render(fmt.Sprintf("%d violations", len(rep.Violations))))
	for _, v := range rep.Violations {
		fmt.Fprintln(w, s.bad.Render("  "+v.Error()))
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
