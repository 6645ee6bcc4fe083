package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tide-ide/tide/internal/coursetree"
	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/pkg/models"
)

func sampleItems() []*models.Item {
	return []*models.Item{{
		Label: "Course: A", Kind: models.KindDir, MaxPoints: 10, Current: 2.5, Status: models.StatusPartial,
		Children: []*models.Item{
			{Label: "Demo1", Kind: models.KindDir, MaxPoints: 10, Current: 2.5, Status: models.StatusPartial,
				Children: []*models.Item{
					{Label: "main.py", Kind: models.KindFile, MaxPoints: 10, Current: 2.5, Status: models.StatusPartial},
				}},
			{Label: "notes.txt", Kind: models.KindFile, Status: models.StatusNoData},
		},
	}}
}

func TestRenderItemsPlain(t *testing.T) {
	want := strings.Join([]string{
		"Course: A [2.5/10]",
		"├── Demo1 [2.5/10]",
		"│   └── main.py [2.5/10]",
		"└── notes.txt",
		"",
	}, "\n")
	assert.Equal(t, want, renderItems(sampleItems(), true))
}

func TestRenderSummariesPlain(t *testing.T) {
	out := renderSummaries([]explorer.CourseSummary{{
		Course: "Course: A", Points: coursetree.Points{Max: 4, Current: 4}, Status: models.StatusComplete, Files: 3,
	}}, true)
	assert.Contains(t, out, "Course: A")
	assert.Contains(t, out, "4/4")
	assert.Contains(t, out, "3 files")
	assert.Contains(t, out, string(models.StatusComplete))
}

func TestPrintStructuredYAML(t *testing.T) {
	defer func() { treeOpts.yaml = false }()
	treeOpts.yaml = true

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, printStructured(cmd, sampleItems(), func() string { return "" }))

	var back []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "Course: A", back[0]["label"])
	assert.Equal(t, 2.5, back[0]["current_points"])
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "3", formatPoints(3))
	assert.Equal(t, "0.25", formatPoints(0.25))
}
