package bridge

// Action is one of the commands the bridge understands.
type Action int

const (
	ActionLogEvent Action = iota + 1
	ActionActivateApp
	ActionUserIsChild
	ActionSetAdvertiserTracking
)

var actionNames = map[string]Action{
	"logEvent":              ActionLogEvent,
	"activateApp":           ActionActivateApp,
	"userIsChild":           ActionUserIsChild,
	"setAdvertiserTracking": ActionSetAdvertiserTracking,
}

// ParseAction maps an action name to an Action. Names are case-sensitive.
func ParseAction(name string) (Action, bool) {
	a, ok := actionNames[name]
	return a, ok
}

func (a Action) String() string {
	switch a {
	case ActionLogEvent:
		return "logEvent"
	case ActionActivateApp:
		return "activateApp"
	case ActionUserIsChild:
		return "userIsChild"
	case ActionSetAdvertiserTracking:
		return "setAdvertiserTracking"
	default:
		return "unknown"
	}
}
