package common

type SessionState uint

const (
	ReportsView        SessionState = iota // moderation report queue
	FollowRequestsView                     // pending inbound follows
	RelaysView                             // relay subscription states
)

// ActivateViewMsg is sent when a view becomes active (visible)
type ActivateViewMsg struct{}

// DeactivateViewMsg is sent when a view becomes inactive (hidden)
type DeactivateViewMsg struct{}
