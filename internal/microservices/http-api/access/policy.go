package access

import (
	"net/http"

	"yamdb/internal/microservices/http-api/apperr"
)

type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Safe reports whether the action never mutates state.
func (a Action) Safe() bool {
	return a == ActionRead
}

// ActionFromMethod maps an HTTP method onto an action.
func ActionFromMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionUpdate
	}
}

type Kind string

const (
	KindTitle    Kind = "title"
	KindCategory Kind = "category"
	KindGenre    Kind = "genre"
	KindReview   Kind = "review"
	KindComment  Kind = "comment"
	// KindAccount is another account addressed by handle.
	KindAccount Kind = "account"
	// KindProfile is the actor's own account (the /users/me endpoint).
	KindProfile Kind = "profile"
)

// Target describes the resource a request acts on. AuthorID is only
// meaningful for reviews and comments, and only for update/delete.
type Target struct {
	Kind     Kind
	AuthorID string
}

// Authorize is the permission decision for one request. It returns nil or an
// error wrapping apperr.ErrForbidden and has no side effects.
func Authorize(a Actor, action Action, t Target) error {
	if action.Safe() {
		switch t.Kind {
		case KindAccount:
			if HasCapability(a, RoleAdmin) {
				return nil
			}
			return deny(action, t)
		case KindProfile:
			if a.Authenticated() {
				return nil
			}
			return deny(action, t)
		default:
			return nil
		}
	}

	if !a.Authenticated() {
		return deny(action, t)
	}

	switch t.Kind {
	case KindTitle, KindCategory, KindGenre, KindAccount:
		if HasCapability(a, RoleAdmin) {
			return nil
		}
	case KindReview, KindComment:
		if action == ActionCreate {
			if HasCapability(a, RoleUser) {
				return nil
			}
			break
		}
		if t.AuthorID != "" && t.AuthorID == a.ID {
			return nil
		}
		if HasCapability(a, RoleModerator) {
			return nil
		}
	case KindProfile:
		if action == ActionUpdate {
			return nil
		}
	}
	return deny(action, t)
}

// CanAssignRole reports whether the actor may change any account's role.
func CanAssignRole(a Actor) bool {
	return HasCapability(a, RoleAdmin)
}

func deny(action Action, t Target) error {
	return apperr.Forbidden("not allowed to " + action.String() + " " + string(t.Kind))
}
