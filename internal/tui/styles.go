package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Sternrassler/dex-client/internal/render"
	"github.com/Sternrassler/dex-client/pkg/catalog"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

	numberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

	nameStyle = lipgloss.NewStyle().Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "5", Dark: "13"})

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "248"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"}).
			Padding(0, 1)
)

// typeColors are pill colors per item type.
var typeColors = map[string]lipgloss.Color{
	"normal":   "250",
	"fire":     "202",
	"water":    "33",
	"grass":    "34",
	"electric": "220",
	"ice":      "117",
	"fighting": "160",
	"poison":   "129",
	"ground":   "178",
	"flying":   "111",
	"psychic":  "205",
	"bug":      "106",
	"rock":     "137",
	"ghost":    "61",
	"dragon":   "57",
	"dark":     "239",
	"steel":    "146",
	"fairy":    "218",
}

// TypePill renders a type name as a colored label.
func TypePill(name string) string {
	color, ok := typeColors[name]
	if !ok {
		color = "245"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(color).
		Padding(0, 1).
		Render(name)
}

// row renders one list row.
func row(item *catalog.Item, selected bool) string {
	name := nameStyle.Render(item.Name)
	marker := "  "
	if selected {
		name = selectedStyle.Render(item.Name)
		marker = selectedStyle.Render("› ")
	}

	pills := make([]string, 0, len(item.Types))
	for _, t := range item.Types {
		pills = append(pills, TypePill(t))
	}

	return fmt.Sprintf("%s%s %s %s", marker, numberStyle.Render(item.Number()), name, strings.Join(pills, " "))
}

// card renders the detail card of the selected item.
func card(item *catalog.Item, width int) string {
	lines := []string{
		fmt.Sprintf("%s %s", numberStyle.Render(item.Number()), nameStyle.Render(item.Name)),
	}
	if stats := render.Stats(item); stats != "" {
		lines = append(lines, detailStyle.Render(stats))
	}
	if abilities := render.Abilities(item); abilities != "" {
		lines = append(lines, detailStyle.Render(abilities))
	}
	lines = append(lines, labelStyle.Render(item.ArtworkURL()))

	style := cardStyle
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}
