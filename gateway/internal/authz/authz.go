// Package authz decides whether a verified identity may use a route.
package authz

import (
	"fmt"

	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/routes"
)

// Outcome is the tag of a Decision.
type Outcome int

const (
	Allow Outcome = iota
	Unauthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the result of Authorize. Reason is meant for logs, not clients.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// Authorize checks the identity's role against the route's role set, then
// against the role's method override if the route declares one. Roles are
// matched exactly; there is no hierarchy.
func Authorize(identity *models.Identity, route *routes.Route, method, path string) Decision {
	if identity == nil {
		return Decision{Outcome: Unauthenticated, Reason: "no verified identity"}
	}
	if route == nil {
		return Decision{Outcome: Forbidden, Reason: fmt.Sprintf("no route covers %s", path)}
	}

	if !route.Allows(identity.Role) {
		return Decision{
			Outcome: Forbidden,
			Reason:  fmt.Sprintf("role %q is not allowed on route %s", identity.Role, route.Name),
		}
	}
	if !route.MethodAllowed(identity.Role, method) {
		return Decision{
			Outcome: Forbidden,
			Reason:  fmt.Sprintf("role %q may not %s %s", identity.Role, method, path),
		}
	}

	return Decision{Outcome: Allow}
}

// RequireRoles checks an identity against a fixed role set, for endpoints
// served by the gateway itself rather than through the route table.
func RequireRoles(identity *models.Identity, roles ...models.Role) Decision {
	if identity == nil {
		return Decision{Outcome: Unauthenticated, Reason: "no verified identity"}
	}
	for _, r := range roles {
		if identity.Role == r {
			return Decision{Outcome: Allow}
		}
	}
	return Decision{Outcome: Forbidden, Reason: fmt.Sprintf("role %q is not permitted", identity.Role)}
}
