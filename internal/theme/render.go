package theme

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shared-lists/internal/model"
)

// RenderList draws one list with its items and sharing badges.
func RenderList(v model.ListView) string {
	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, HeaderStyle.Render(v.Name), badges(v)))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(fmt.Sprintf("id %s", v.ListID)))
	b.WriteString("\n\n")

	if len(v.Items) == 0 {
		b.WriteString(HelpStyle.Render("  (no items)"))
	}
	for i, it := range v.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		if it.Checked {
			b.WriteString(CheckedItemStyle.Render("[x] " + it.Name))
		} else {
			b.WriteString(ItemStyle.Render("[ ] " + it.Name))
		}
	}
	return PanelStyle.Render(b.String())
}

// RenderOverview draws one line per list followed by its first items.
func RenderOverview(views []model.ListView) string {
	if len(views) == 0 {
		return HelpStyle.Render("No lists yet.")
	}

	var lines []string
	for _, v := range views {
		order := "-"
		if v.Order != math.MaxInt {
			order = fmt.Sprint(v.Order)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s%s",
			HelpStyle.Render(fmt.Sprintf("%3s", order)),
			lipgloss.NewStyle().Bold(true).Render(v.Name),
			HelpStyle.Render("("+v.ListID+")"),
			badges(v)))
		for _, it := range v.Items {
			mark := "[ ]"
			style := ItemStyle
			if it.Checked {
				mark, style = "[x]", CheckedItemStyle
			}
			lines = append(lines, "    "+style.Render(mark+" "+it.Name))
		}
	}
	return strings.Join(lines, "\n")
}

func badges(v model.ListView) string {
	var out []string
	if !v.IsOwner {
		out = append(out, BadgeStyle("shared").Render("shared with you"))
	} else if v.IsShared != nil && *v.IsShared {
		label := "shared"
		if len(v.SharedWith) > 0 {
			label = "shared with " + strings.Join(v.SharedWith, ", ")
		}
		out = append(out, BadgeStyle("owner").Render(label))
	}
	return strings.Join(out, " ")
}
