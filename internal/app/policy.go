package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(s *Session) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Session) BackpressureAction {
	return KickMember
}
