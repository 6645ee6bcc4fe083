package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/tree"
)

var (
	colorComplete   = lipgloss.Color("#2ECC71")
	colorPartial    = lipgloss.Color("#F4D03F")
	colorNotStarted = lipgloss.Color("#E74C3C")
	colorMuted      = lipgloss.Color("#7F8C8D")

	styleCourse = lipgloss.NewStyle().Bold(true)
	styleBranch = lipgloss.NewStyle().Foreground(colorMuted)
	styleNotice = lipgloss.NewStyle().Foreground(colorPartial)
)

func statusStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusComplete:
		return lipgloss.NewStyle().Foreground(colorComplete)
	case models.StatusPartial:
		return lipgloss.NewStyle().Foreground(colorPartial)
	case models.StatusNotStarted:
		return lipgloss.NewStyle().Foreground(colorNotStarted)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// itemLabel is "label [cur/max]"; items without data have no suffix.
func itemLabel(it *models.Item, plain bool) string {
	label := it.Label
	if it.Kind == models.KindDir && strings.HasPrefix(label, "Course: ") && !plain {
		label = styleCourse.Render(label)
	}
	if it.Status == models.StatusNoData {
		return label
	}
	pts := fmt.Sprintf("[%s/%s]", formatPoints(it.Current), formatPoints(it.MaxPoints))
	if plain {
		return label + " " + pts
	}
	return label + " " + statusStyle(it.Status).Render(pts)
}

// renderItems draws the items as a unix-style tree.
func renderItems(items []*models.Item, plain bool) string {
	var branch func(string) string
	if !plain {
		branch = func(s string) string { return styleBranch.Render(s) }
	}
	return tree.Render(items,
		func(it *models.Item) []*models.Item { return it.Children },
		func(it *models.Item) string { return itemLabel(it, plain) },
		branch)
}

func renderSummaries(sums []explorer.CourseSummary, plain bool) string {
	var b strings.Builder
	for _, s := range sums {
		line := fmt.Sprintf("%-40s %6s/%-6s %3d files  %s", s.Course,
			formatPoints(s.Points.Current), formatPoints(s.Points.Max), s.Files, s.Status)
		if !plain {
			line = statusStyle(s.Status).Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func notice(msg string, plain bool) string {
	if plain {
		return msg
	}
	return styleNotice.Render(msg)
}
