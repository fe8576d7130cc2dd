package app

import (
	"fmt"

	"github.com/dkeye/Babel/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropDelivery
	KickMember
)

func (a BackpressureAction) String() string {
	switch a {
	case DropDelivery:
		return "drop"
	case KickMember:
		return "kick"
	default:
		return "none"
	}
}

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackPressure(id domain.MemberID) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(domain.MemberID) BackpressureAction {
	return p.Action
}

// ParsePolicy maps the slow_consumer_policy config value to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return SimplePolicy{Action: DropDelivery}, nil
	case "kick":
		return SimplePolicy{Action: KickMember}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", name)
	}
}
