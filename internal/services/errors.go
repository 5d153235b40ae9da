package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated           = errors.New("not authenticated")
	ErrNotMember                 = errors.New("not a member of this space")
	ErrInsufficientRole          = errors.New("insufficient role")
	ErrResourceNotFound          = errors.New("resource not found")
	ErrInvitationExpired         = errors.New("invitation has expired")
	ErrInvitationAlreadyResolved = errors.New("invitation already resolved")
	ErrConflict                  = errors.New("conflict")
	ErrUpstreamUnavailable       = errors.New("memory service unavailable")
	ErrPersistence               = errors.New("persistence failure")
	ErrInvalidInput              = errors.New("invalid input")
)

var (
	ErrAlreadyMember           = fmt.Errorf("%w: user is already a member", ErrConflict)
	ErrInvitationPending       = fmt.Errorf("%w: a pending invitation already exists", ErrConflict)
	ErrTagExists               = fmt.Errorf("%w: tag already exists in this space", ErrConflict)
	ErrTagApplied              = fmt.Errorf("%w: tag already applied", ErrConflict)
	ErrSlugTaken               = fmt.Errorf("%w: slug already taken", ErrConflict)
	ErrSoleOwner               = fmt.Errorf("%w: space must keep at least one owner", ErrConflict)
	ErrInvitationEmailMismatch = fmt.Errorf("%w: invitation was sent to a different email", ErrNotMember)
	ErrRoleAboveInviter        = fmt.Errorf("%w: cannot grant a role above your own", ErrInsufficientRole)
	ErrInvalidSlug             = fmt.Errorf("%w: slug must match ^[a-z0-9-]+$", ErrInvalidInput)
	ErrInvalidEmail            = fmt.Errorf("%w: email is required", ErrInvalidInput)
	ErrCrossSpace              = fmt.Errorf("%w: resources belong to different spaces", ErrInvalidInput)
)

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", ErrPersistence, op, err)
}
