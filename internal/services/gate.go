package services

import (
	"context"
	"errors"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
)

type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeNotMember
	OutcomeInsufficientRole
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeNotMember:
		return "not_member"
	case OutcomeInsufficientRole:
		return "insufficient_role"
	case OutcomeNotFound:
		return "not_found"
	}
	return "unknown"
}

// Decision is the result of an authorization check. SpaceID and Role are set whenever a
// membership was found, including OutcomeInsufficientRole.
type Decision struct {
	Outcome  Outcome
	SpaceID  uuid.UUID
	Role     models.Role
	Required models.Role
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeAllowed:
		return nil
	case OutcomeNotMember:
		return ErrNotMember
	case OutcomeInsufficientRole:
		return ErrInsufficientRole
	default:
		return ErrResourceNotFound
	}
}

func (d Decision) Access() *Access {
	if !d.Allowed() {
		return nil
	}
	return &Access{SpaceID: d.SpaceID, Role: d.Role}
}

// Gate composes ownership resolution with the membership check. Every mutation on an owned
// resource goes through it.
type Gate struct {
	owners  *OwnershipResolver
	members *MembershipResolver
	metrics *metrics.Metrics
}

func NewGate(owners *OwnershipResolver, members *MembershipResolver, m *metrics.Metrics) *Gate {
	return &Gate{owners: owners, members: members, metrics: m}
}

// Check resolves the owning space of the resource and evaluates the caller's role there.
// A non-nil error means the check itself could not complete and the operation must abort.
func (g *Gate) Check(ctx context.Context, id Identity, kind ResourceKind, resourceID string, required models.Role) (Decision, error) {
	return g.check(ctx, g.members.db.Pool, id, kind, resourceID, required)
}

func (g *Gate) check(ctx context.Context, q database.Querier, id Identity, kind ResourceKind, resourceID string, required models.Role) (Decision, error) {
	if !id.Valid() {
		return Decision{}, ErrUnauthenticated
	}

	var ref SpaceRef
	var err error
	if kind == KindMemory {
		ref, err = g.owners.ResolveOwner(ctx, kind, resourceID)
	} else {
		ref, err = g.owners.resolveOwner(ctx, q, kind, resourceID)
	}
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			g.metrics.ObserveAuthz(OutcomeNotFound.String(), string(required))
			return Decision{Outcome: OutcomeNotFound, Required: required}, nil
		}
		return Decision{}, err
	}

	return g.members.evaluate(ctx, q, id.UserID, ref, required)
}

func (g *Gate) Authorize(ctx context.Context, id Identity, kind ResourceKind, resourceID string, required models.Role) (*Access, error) {
	return g.authorizeIn(ctx, g.members.db.Pool, id, kind, resourceID, required)
}

// authorizeIn reads the ownership chain and the membership through q, so a caller holding
// row locks in a transaction sees the same state it is about to write.
func (g *Gate) authorizeIn(ctx context.Context, q database.Querier, id Identity, kind ResourceKind, resourceID string, required models.Role) (*Access, error) {
	d, err := g.check(ctx, q, id, kind, resourceID, required)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return d.Access(), nil
}

// AuthorizeSpace is for operations addressed directly at a space.
func (g *Gate) AuthorizeSpace(ctx context.Context, id Identity, ref SpaceRef, required models.Role) (*Access, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	return g.members.RequireRole(ctx, id.UserID, ref, required)
}

// AuthorizeMemory also returns the fetched record so callers do not hit the memory
// service twice.
func (g *Gate) AuthorizeMemory(ctx context.Context, id Identity, memoryID string, required models.Role) (*Access, *memory.Record, error) {
	if !id.Valid() {
		return nil, nil, ErrUnauthenticated
	}

	rec, ref, err := g.owners.ResolveMemory(ctx, memoryID)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			g.metrics.ObserveAuthz(OutcomeNotFound.String(), string(required))
		}
		return nil, nil, err
	}

	access, err := g.members.RequireRole(ctx, id.UserID, ref, required)
	if err != nil {
		return nil, nil, err
	}
	return access, rec, nil
}

// Role returns the caller's verified access in the space, or nil when not a member.
func (g *Gate) Role(ctx context.Context, id Identity, ref SpaceRef) (*Access, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	return g.members.RoleOf(ctx, id.UserID, ref)
}
