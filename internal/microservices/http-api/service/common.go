package service

import (
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/repository"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// guardAnonymous rejects unsafe requests without credentials before any
// resource is resolved, so anonymous callers learn nothing about existence.
func guardAnonymous(a access.Actor, action access.Action, kind access.Kind) error {
	if action.Safe() || a.Authenticated() {
		return nil
	}
	return access.Authorize(a, action, access.Target{Kind: kind})
}

// lookupErr converts a repository lookup failure.
func lookupErr(err error, what, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return apperr.Dependency(op, err)
}

// writeErr converts a repository write failure.
func writeErr(err error, op, conflict string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict(conflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op)
	default:
		return apperr.Dependency(op, err)
	}
}

func toPage(q dto.PageQuery) repository.Page {
	return repository.Page{Number: q.Page, Size: q.PageSize}
}

// validateSlugName checks the shared shape of categories and genres on top
// of ve. Nil pointers are skipped for partial updates.
func validateSlugName(ve *apperr.ValidationError, name, slug *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		ve.Add("name", "must not be blank")
	}
	if slug != nil {
		switch {
		case *slug == "":
			ve.Add("slug", "must not be blank")
		case len(*slug) > 50:
			ve.Add("slug", "must be at most 50 characters")
		case !slugPattern.MatchString(*slug):
			ve.Add("slug", "may contain only letters, digits, hyphens and underscores")
		}
	}
	return ve.OrNil()
}
