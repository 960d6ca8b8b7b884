// Package guard decides whether a session may see a protected view
package guard

import (
	"github.com/example/storefront/internal/navigation"
	"github.com/example/storefront/internal/session"
)

type Outcome int

const (
	Allow Outcome = iota
	Redirect
	// Pending means the session is still being resolved; nothing is shown
	Pending
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome  Outcome
	Location string
}

// LoginPath is where denied sessions are sent
var LoginPath = navigation.Resolve(navigation.Login)

// Evaluate gates a view. Anonymous sessions are always redirected; admin
// views also redirect authenticated non-admins.
func Evaluate(s session.Context, requireAdmin bool) Decision {
	if !s.IsAuthenticated {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	if requireAdmin && s.Role != session.RoleAdmin {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	return Decision{Outcome: Allow}
}

// EvaluateResolution is Evaluate for a session that may still be loading
func EvaluateResolution(r session.Resolution, requireAdmin bool) Decision {
	if !r.Resolved {
		return Decision{Outcome: Pending}
	}
	return Evaluate(r.Context, requireAdmin)
}
