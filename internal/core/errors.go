package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrAuthFailed       = errors.New("authentication failed")
	ErrUserNotFound     = errors.New("user not found")
	ErrBanned           = errors.New("account banned")
	ErrIPBlocked        = errors.New("ip blocked")
	ErrRoomNotFound     = errors.New("room not found")
	ErrPasswordRequired = errors.New("room password required")
	ErrPasswordWrong    = errors.New("room password wrong")

	ErrNoSession     = errors.New("no session")
	ErrRoomNotActive = errors.New("room not active")
	ErrDuplicateItem = errors.New("track already queued")
)

type DenialKind int

const (
	PermissionDenied DenialKind = iota + 1
	ValidationFailure
)

// Denial is a refused action. It never mutates state and is reported to the
// sender only.
type Denial struct {
	Kind      DenialKind
	Msg       string
	Remaining int
}

func (d *Denial) Error() string {
	if d.Remaining > 0 {
		return fmt.Sprintf("%s (retry in %ds)", d.Msg, d.Remaining)
	}
	return d.Msg
}

func Deny(msg string) *Denial { return &Denial{Kind: PermissionDenied, Msg: msg} }

func Invalid(msg string) *Denial { return &Denial{Kind: ValidationFailure, Msg: msg} }

func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
