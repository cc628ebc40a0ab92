package access

import "fmt"

// Role is the authorization level assigned to an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every assignable role, lowest first.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// ParseRole validates a role string coming from a request body.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r.level() > 0
}

// AtLeast reports whether r grants every capability of target.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

func (r Role) level() int {
	switch r {
	case RoleAdmin:
		return 30
	case RoleModerator:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}

// Actor is the identity making a request. The zero value is anonymous.
type Actor struct {
	ID        string
	Username  string
	Role      Role
	Superuser bool
}

// Anonymous is the actor for requests without credentials.
var Anonymous = Actor{}

func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// EffectiveRole folds the superuser flag into the role ordering.
func (a Actor) EffectiveRole() Role {
	if !a.Authenticated() {
		return ""
	}
	if a.Superuser {
		return RoleAdmin
	}
	return a.Role
}

// HasCapability reports whether the actor holds at least the required level.
// Anonymous actors hold no capability.
func HasCapability(a Actor, required Role) bool {
	if !a.Authenticated() {
		return false
	}
	return a.EffectiveRole().AtLeast(required)
}
