package storefront

import (
	"github.com/go-faster/errors"
)

type Mode string

const (
	ModeBrowsing     Mode = "browsing"
	ModeCartOpen     Mode = "cart_open"
	ModeLoginOpen    Mode = "login_open"
	ModeRegisterOpen Mode = "register_open"
)

type Action string

const (
	ActionOpenCart         Action = "open_cart"
	ActionClose            Action = "close"
	ActionRequestAuth      Action = "request_auth"
	ActionSwitchToRegister Action = "switch_to_register"
	ActionSwitchToLogin    Action = "switch_to_login"
	ActionAuthSuccess      Action = "auth_success"
	ActionCheckoutSuccess  Action = "checkout_success"
)

var ErrInvalidTransition = errors.New("storefront: action not allowed in current mode")

// modeState is the UI mode plus the mode an auth modal returns to.
type modeState struct {
	current  Mode
	returnTo Mode
}

func (m modeState) authOpen() bool {
	return m.current == ModeLoginOpen || m.current == ModeRegisterOpen
}

// apply returns the state after a, or ErrInvalidTransition.
func (m modeState) apply(a Action, signedIn bool) (modeState, error) {
	switch {
	case a == ActionOpenCart && m.current == ModeBrowsing:
		if signedIn {
			return modeState{current: ModeCartOpen}, nil
		}
		return modeState{current: ModeLoginOpen, returnTo: ModeBrowsing}, nil

	case a == ActionClose && m.current == ModeCartOpen:
		return modeState{current: ModeBrowsing}, nil

	case a == ActionRequestAuth && (m.current == ModeBrowsing || m.current == ModeCartOpen):
		return modeState{current: ModeLoginOpen, returnTo: m.current}, nil

	case a == ActionSwitchToRegister && m.current == ModeLoginOpen:
		return modeState{current: ModeRegisterOpen, returnTo: m.returnTo}, nil

	case a == ActionSwitchToLogin && m.current == ModeRegisterOpen:
		return modeState{current: ModeLoginOpen, returnTo: m.returnTo}, nil

	case (a == ActionAuthSuccess || a == ActionClose) && m.authOpen():
		back := m.returnTo
		if back == "" || (back == ModeCartOpen && !signedIn) {
			back = ModeBrowsing
		}
		return modeState{current: back}, nil

	case a == ActionCheckoutSuccess && m.current == ModeCartOpen:
		return modeState{current: ModeBrowsing}, nil
	}

	return m, ErrInvalidTransition
}
