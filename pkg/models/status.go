package models

// Status is the completion state of a task or directory.
type Status string

const (
	StatusNoData     Status = "no-data"
	StatusNotStarted Status = "not-started"
	StatusPartial    Status = "partial"
	StatusComplete   Status = "complete"
)

// Classify maps a (max, current) points pair to a Status.
// A zero maximum means nothing scorable, whatever the current value.
func Classify(max, current float64) Status {
	switch {
	case max == 0:
		return StatusNoData
	case current == max:
		return StatusComplete
	case current > 0:
		return StatusPartial
	default:
		return StatusNotStarted
	}
}

// Icon returns the status icon name shown next to a tree item.
func (s Status) Icon() string {
	switch s {
	case StatusComplete:
		return "status-green"
	case StatusPartial:
		return "status-yellow"
	case StatusNotStarted:
		return "status-red"
	default:
		return ""
	}
}

// Item is the view of a node handed to tree widgets: the node itself plus
// its aggregated points and status.
type Item struct {
	Label       string      `json:"label" yaml:"label"`
	Path        string      `json:"path" yaml:"path"`
	Kind        NodeKind    `json:"kind" yaml:"kind"`
	Collapsible Collapsible `json:"collapsible" yaml:"collapsible"`
	MaxPoints   float64     `json:"max_points" yaml:"max_points"`
	Current     float64     `json:"current_points" yaml:"current_points"`
	Status      Status      `json:"status" yaml:"status"`
	Icon        string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Children    []*Item     `json:"children,omitempty" yaml:"children,omitempty"`
}
