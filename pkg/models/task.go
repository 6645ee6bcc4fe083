package models

// TaskMetadata is one task record ingested from a sidecar file.
// It is keyed by (TaskSetID, TaskID) in the metadata store.
type TaskMetadata struct {
	TaskSetID     string   `json:"task_set_id"`
	TaskID        string   `json:"ide_task_id"`
	DocID         int64    `json:"doc_id"`
	Path          string   `json:"path"`
	MaxPoints     *float64 `json:"max_points"`
	Type          string   `json:"type,omitempty"`
	TaskDirectory string   `json:"task_directory,omitempty"`
	TaskFiles     []string `json:"task_files,omitempty"`
	Stem          string   `json:"stem,omitempty"`
	Header        string   `json:"header,omitempty"`
}

// Max returns the maximum points, treating nil as zero.
func (m TaskMetadata) Max() float64 {
	if m.MaxPoints == nil {
		return 0
	}
	return *m.MaxPoints
}

// PointsRecord is the latest known score for one task, keyed by
// (task document path, task id).
type PointsRecord struct {
	CurrentPoints *float64 `json:"current_points"`
}

// Current returns the current points, treating nil as zero.
func (p PointsRecord) Current() float64 {
	if p.CurrentPoints == nil {
		return 0
	}
	return *p.CurrentPoints
}

// Float returns a pointer to v. Handy for building records in code and tests.
func Float(v float64) *float64 {
	return &v
}

// CourseStatus marks whether a course is shown to the user.
type CourseStatus string

const (
	CourseActive CourseStatus = "active"
	CourseHidden CourseStatus = "hidden"
)

// Course is a course known to the login/sync collaborator.
type Course struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Status   CourseStatus `json:"status"`
	TaskSets []TaskSet    `json:"task_sets"`
}

// TaskSet is a remotely identified group of tasks ("demo").
type TaskSet struct {
	Name         string     `json:"name"`
	DocID        int64      `json:"doc_id"`
	Path         string     `json:"path"`
	DownloadPath string     `json:"download_path,omitempty"`
	Tasks        []TaskStub `json:"tasks"`
}

// TaskStub identifies one task inside a task set.
type TaskStub struct {
	DocID     int64  `json:"doc_id"`
	IdeTaskID string `json:"ide_task_id"`
	Path      string `json:"path"`
}

// LoginData is the persisted login state.
type LoginData struct {
	IsLogged bool   `json:"is_logged"`
	Username string `json:"username,omitempty"`
}
