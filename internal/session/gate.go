package session

// Requirement is what a destination asks of the session before it is entered.
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAuth
	RequireGuest
)

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "allow"
	}
}

// Gate decides whether a destination with requirement may be entered in the current state.
func (s *Store) Gate(requirement Requirement) Decision {
	authenticated := s.IsAuthenticated()
	switch {
	case requirement == RequireAuth && !authenticated:
		return RedirectLogin
	case requirement == RequireGuest && authenticated:
		return RedirectHome
	default:
		return Allow
	}
}
