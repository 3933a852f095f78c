package domain

const (
	ActionKick           = "kick"
	ActionBan            = "ban"
	ActionLock           = "lock"
	ActionRemoteMute     = "remote-mute"
	ActionRemoteVideoOff = "remote-video-off"
)

// AdminAction is the payload of an admin-action envelope. Locked is set only for ActionLock.
type AdminAction struct {
	Action string `json:"action"`
	Locked *bool  `json:"locked,omitempty"`
}

func NewLockAction(locked bool) *AdminAction {
	return &AdminAction{Action: ActionLock, Locked: &locked}
}

// Targeted reports whether the action must carry a target id.
func (a AdminAction) Targeted() bool {
	switch a.Action {
	case ActionKick, ActionBan, ActionRemoteMute, ActionRemoteVideoOff:
		return true
	default:
		return false
	}
}
