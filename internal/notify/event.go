package notify

// Kind names a scheduler lifecycle transition.
type Kind string

const (
	KindStart          Kind = "start"
	KindPause          Kind = "pause"
	KindStop           Kind = "stop"
	KindSuccess        Kind = "success"
	KindFetchError     Kind = "fetch-error"
	KindSaveError      Kind = "save-error"
	KindRetryScheduled Kind = "retry-scheduled"
	KindComplete       Kind = "complete"
	KindLog            Kind = "log"
)

// Level indicates the severity/type of an event message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Event is a copy of scheduler state at one transition. Observers never
// receive a handle to scheduler internals.
type Event struct {
	Kind    Kind
	Level   Level
	Message string

	// ItemID and Path are set for per-item events.
	ItemID  string
	Path    string
	Skipped bool

	Done  int
	Total int
}
