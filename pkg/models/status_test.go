package models

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		max, current float64
		want         Status
	}{
		{"zero max", 0, 0, StatusNoData},
		{"zero max with points", 0, 5, StatusNoData},
		{"complete", 10, 10, StatusComplete},
		{"complete fractional", 2.5, 2.5, StatusComplete},
		{"partial", 10, 4, StatusPartial},
		{"not started", 10, 0, StatusNotStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.max, tt.current); got != tt.want {
				t.Errorf("Classify(%v, %v) = %q, want %q", tt.max, tt.current, got, tt.want)
			}
		})
	}
}

func TestStatusIcon(t *testing.T) {
	tests := map[Status]string{
		StatusNoData:     "",
		StatusNotStarted: "status-red",
		StatusPartial:    "status-yellow",
		StatusComplete:   "status-green",
	}
	for s, want := range tests {
		if got := s.Icon(); got != want {
			t.Errorf("%s.Icon() = %q, want %q", s, got, want)
		}
	}
}

func TestNodeAddChild(t *testing.T) {
	dir := NewDir("Course: A", "/root/A")
	file := NewFile("main.py", "/root/A/main.py")

	dir.AddChild(file)
	file.AddChild(NewFile("x", "/x"))

	if len(dir.Children) != 1 {
		t.Fatalf("dir children = %d, want 1", len(dir.Children))
	}
	if len(file.Children) != 0 {
		t.Errorf("file node got children: %d", len(file.Children))
	}
	if dir.Collapsible() != CollapsibleExpanded || file.Collapsible() != CollapsibleNone {
		t.Errorf("unexpected collapsible state: dir=%s file=%s", dir.Collapsible(), file.Collapsible())
	}
}

func TestNilDefaults(t *testing.T) {
	var m TaskMetadata
	if m.Max() != 0 {
		t.Errorf("Max() on nil = %v", m.Max())
	}
	var p PointsRecord
	if p.Current() != 0 {
		t.Errorf("Current() on nil = %v", p.Current())
	}
	p.CurrentPoints = Float(3)
	if p.Current() != 3 {
		t.Errorf("Current() = %v, want 3", p.Current())
	}
}
