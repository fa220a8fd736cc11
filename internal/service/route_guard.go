package service

import (
	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/config"
)

// AuthState is the client's view of identity resolution.
type AuthState string

const (
	AuthLoading         AuthState = "loading"
	AuthAuthenticated   AuthState = "authenticated"
	AuthUnauthenticated AuthState = "unauthenticated"
)

// GuardKind selects which terminal state a guard requires.
type GuardKind string

const (
	// GuardProtected renders only for authenticated identities.
	GuardProtected GuardKind = "protected"
	// GuardGuest renders only while nobody is signed in (login, signup).
	GuardGuest GuardKind = "guest"
)

// GuardAction is what the view layer should do next.
type GuardAction string

const (
	GuardShowLoading GuardAction = "loading"
	GuardRender      GuardAction = "render"
	GuardRedirect    GuardAction = "redirect"
	// GuardHold means a redirect for the current state was already issued.
	GuardHold GuardAction = "hold"
)

// GuardOutcome is the result of observing an auth state.
type GuardOutcome struct {
	Action GuardAction `json:"action"`
	Target string      `json:"target,omitempty"`
}

// GuardPaths are the redirect destinations.
type GuardPaths struct {
	Login     string
	AdminHome string
	Dashboard string
}

// GuardPathsFromConfig reads redirect destinations from route configuration.
func GuardPathsFromConfig(cfg config.RoutesConfig) GuardPaths {
	return GuardPaths{Login: cfg.LoginPath, AdminHome: cfg.AdminHome, Dashboard: cfg.DashboardPath}
}

// Landing returns the role specific home view.
func (p GuardPaths) Landing(identity *models.Identity) string {
	if identity.IsAdmin() {
		return p.AdminHome
	}
	return p.Dashboard
}

// EvaluateGuard is the stateless decision for one observation.
func EvaluateGuard(kind GuardKind, state AuthState, identity *models.Identity, paths GuardPaths) GuardOutcome {
	switch state {
	case AuthAuthenticated:
		if kind == GuardGuest {
			return GuardOutcome{Action: GuardRedirect, Target: paths.Landing(identity)}
		}
		return GuardOutcome{Action: GuardRender}
	case AuthUnauthenticated:
		if kind == GuardProtected {
			return GuardOutcome{Action: GuardRedirect, Target: paths.Login}
		}
		return GuardOutcome{Action: GuardRender}
	default:
		return GuardOutcome{Action: GuardShowLoading}
	}
}

// RouteGuard tracks one view's guard across state changes so a redirect fires exactly once
// per transition into a disagreeing terminal state. A guard belongs to a single client
// session and is not shared between requests.
type RouteGuard struct {
	kind       GuardKind
	paths      GuardPaths
	state      AuthState
	redirected bool
}

// NewRouteGuard starts a guard in the loading state.
func NewRouteGuard(kind GuardKind, paths GuardPaths) *RouteGuard {
	return &RouteGuard{kind: kind, paths: paths, state: AuthLoading}
}

// State returns the last observed state.
func (g *RouteGuard) State() AuthState {
	return g.state
}

// Observe feeds a new auth state into the guard.
func (g *RouteGuard) Observe(state AuthState, identity *models.Identity) GuardOutcome {
	if state == AuthAuthenticated && identity == nil {
		state = AuthUnauthenticated
	}
	if state != g.state {
		g.state = state
		g.redirected = false
	}

	outcome := EvaluateGuard(g.kind, state, identity, g.paths)
	if outcome.Action != GuardRedirect {
		return outcome
	}
	if g.redirected {
		return GuardOutcome{Action: GuardHold}
	}
	g.redirected = true
	return outcome
}
