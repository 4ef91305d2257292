package reconcile

// State is a step of one reconciliation.
type State int

const (
	StateIdle State = iota
	StateParsing
	StateDeciding
	StateExchangingCode
	StateSettingSession
	StateCheckingExistingSession
	StateVerifying
	StateSuccess
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                    "idle",
	StateParsing:                 "parsing",
	StateDeciding:                "deciding",
	StateExchangingCode:          "exchanging-code",
	StateSettingSession:          "setting-session",
	StateCheckingExistingSession: "checking-existing-session",
	StateVerifying:               "verifying",
	StateSuccess:                 "success",
	StateFailed:                  "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}
