package domain

// Board is an independent named collection of tasks with its own quadrants.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preferences holds per-user display and selection options.
type Preferences struct {
	ActiveBoardID    string `json:"activeBoardId,omitempty"`
	TasksPerQuadrant int    `json:"tasksPerQuadrant,omitempty"`
	ShowDoneTasks    bool   `json:"showDoneTasks,omitempty"`
}

// Snapshot is the full persisted state of one user scope. It is the only
// structural contract between the engine and the persistence adapter.
type Snapshot struct {
	Boards      []Board     `json:"boards"`
	Tasks       []Task      `json:"tasks"`
	Preferences Preferences `json:"preferences"`
}
