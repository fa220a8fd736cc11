package service

import (
	"path"
	"strings"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

// RouteClass partitions request paths by the identity they require.
type RouteClass string

const (
	RoutePublic         RouteClass = "public"
	RouteAdminProtected RouteClass = "admin-protected"
	RouteUserProtected  RouteClass = "user-protected"
)

// Namespace identifies which edge-enforced prefix a path falls under.
type Namespace int

const (
	NamespaceNone Namespace = iota
	NamespaceProtected
	NamespaceAdmin
)

// RouteRules is the ordered classification rule set.
type RouteRules struct {
	PublicExact     []string
	PublicPrefixes  []string
	AdminPrefix     string
	ProtectedPrefix string
	DefaultClass    RouteClass
}

// RouteRulesFromConfig builds the rule set from route configuration.
func RouteRulesFromConfig(cfg config.RoutesConfig) RouteRules {
	return RouteRules{
		PublicExact:     cfg.PublicExact,
		PublicPrefixes:  cfg.PublicPrefixes,
		AdminPrefix:     cfg.AdminPrefix,
		ProtectedPrefix: cfg.ProtectedPrefix,
		DefaultClass:    RouteUserProtected,
	}
}

// Decision is the outcome of an authorization check. Reason is nil on Allow.
type Decision struct {
	Allow  bool
	Class  RouteClass
	Reason *appErrors.Error
}

// Err returns the denial reason as an error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allow || d.Reason == nil {
		return nil
	}
	return d.Reason
}

type prefixRule struct {
	prefix string
	class  RouteClass
}

// Authorizer classifies paths and decides access. It holds only immutable state built at
// construction and is safe for concurrent use.
type Authorizer struct {
	exact        map[string]struct{}
	prefixes     []prefixRule
	adminNS      string
	protectedNS  string
	defaultClass RouteClass
}

// NewAuthorizer compiles the rule set.
func NewAuthorizer(rules RouteRules) *Authorizer {
	a := &Authorizer{
		exact:        make(map[string]struct{}, len(rules.PublicExact)),
		adminNS:      normalisePrefix(rules.AdminPrefix),
		protectedNS:  normalisePrefix(rules.ProtectedPrefix),
		defaultClass: rules.DefaultClass,
	}
	if a.defaultClass == "" {
		a.defaultClass = RouteUserProtected
	}
	for _, p := range rules.PublicExact {
		a.exact[cleanPath(p)] = struct{}{}
	}
	for _, p := range rules.PublicPrefixes {
		if p = normalisePrefix(p); p != "" {
			a.prefixes = append(a.prefixes, prefixRule{prefix: p, class: RoutePublic})
		}
	}
	if a.adminNS != "" {
		a.prefixes = append(a.prefixes, prefixRule{prefix: a.adminNS, class: RouteAdminProtected})
	}
	if a.protectedNS != "" {
		a.prefixes = append(a.prefixes, prefixRule{prefix: a.protectedNS, class: RouteUserProtected})
	}
	return a
}

// Classify maps a path to exactly one route class: exact public match first, then the
// longest matching prefix, then the static-asset heuristic, then the default class.
func (a *Authorizer) Classify(p string) RouteClass {
	p = cleanPath(p)
	if _, ok := a.exact[p]; ok {
		return RoutePublic
	}

	best := -1
	for i, rule := range a.prefixes {
		if hasPathPrefix(p, rule.prefix) && (best < 0 || len(rule.prefix) > len(a.prefixes[best].prefix)) {
			best = i
		}
	}
	if best >= 0 {
		return a.prefixes[best].class
	}

	if isStaticAsset(p) {
		return RoutePublic
	}
	return a.defaultClass
}

// Namespace reports which edge-enforced namespace contains p.
func (a *Authorizer) Namespace(p string) Namespace {
	p = cleanPath(p)
	switch {
	case a.adminNS != "" && hasPathPrefix(p, a.adminNS):
		return NamespaceAdmin
	case a.protectedNS != "" && hasPathPrefix(p, a.protectedNS):
		return NamespaceProtected
	default:
		return NamespaceNone
	}
}

// Authorize decides whether identity may access p.
func (a *Authorizer) Authorize(p string, identity *models.Identity, requireAdmin bool) Decision {
	class := a.Classify(p)
	if class == RoutePublic {
		return Decision{Allow: true, Class: class}
	}
	if identity == nil {
		return Decision{Class: class, Reason: appErrors.ErrUnauthenticated}
	}
	if requireAdmin && identity.Role != models.RoleAdmin {
		return Decision{Class: class, Reason: appErrors.ErrInsufficientRole}
	}
	return Decision{Allow: true, Class: class}
}

// cleanPath resolves dot segments and duplicate slashes so "/api/v1/x/../admin" cannot
// dodge the admin namespace.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func normalisePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return cleanPath(p)
}

// hasPathPrefix matches whole segments: "/api/v1/admin" does not cover "/api/v1/administer".
func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// isStaticAsset treats a dotted last segment outside /api/ as a static file. It is a
// convenience for assets only and never guards anything else.
func isStaticAsset(p string) bool {
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		return false
	}
	last := p[strings.LastIndex(p, "/")+1:]
	return strings.Contains(last, ".")
}
