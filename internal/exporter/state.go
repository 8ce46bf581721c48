package exporter

// State is the position of the orchestrator in one export.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateConverting
	StateSaving
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateExtracting: "extracting",
	StateConverting: "converting",
	StateSaving:     "saving",
	StateCompleted:  "completed",
	StateCancelled:  "cancelled",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether an export ends in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Level categorizes a status message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Status is the advisory message shown to the user.
type Status struct {
	Level   Level
	Message string
}

// Snapshot is everything a presentation layer needs to draw the orchestrator.
type Snapshot struct {
	State  State
	Status Status
	// Busy is true while an export runs; the trigger must not be offered.
	Busy bool
}

// Observer receives every snapshot change.
type Observer func(Snapshot)

const (
	msgExtracting   = "Extracting chat..."
	msgSaving       = "Saving file..."
	msgSuccess      = "✓ Chat downloaded successfully!"
	msgWrongContext = "Please open a Gemini chat page"
	msgEmptyExtract = "No chat content found"
	msgErrorPrefix  = "Error: "
)
