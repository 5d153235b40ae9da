package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cardColumns = `id, column_id, title, description, position, assignee_id, due_date, created_by, created_at, updated_at`

type KanbanService struct {
	db      *database.DB
	members *MembershipResolver
	gate    *Gate
	audit   *AuditRecorder
}

func NewKanbanService(db *database.DB, members *MembershipResolver, gate *Gate, audit *AuditRecorder) *KanbanService {
	return &KanbanService{db: db, members: members, gate: gate, audit: audit}
}

// CardInput holds card fields. On update a nil field is left unchanged.
type CardInput struct {
	ColumnID    *uuid.UUID
	Title       *string
	Description *string
	Position    *int
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
}

func scanCard(row pgx.Row) (*models.KanbanCard, error) {
	var c models.KanbanCard
	err := row.Scan(&c.ID, &c.ColumnID, &c.Title, &c.Description, &c.Position, &c.AssigneeID,
		&c.DueDate, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateBoard creates a board in the space together with its default columns.
func (s *KanbanService) CreateBoard(ctx context.Context, id Identity, slug, name string) (*models.KanbanBoard, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	access, err := s.members.requireRole(ctx, tx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	var board models.KanbanBoard
	err = tx.QueryRow(ctx, `
		INSERT INTO kanban_board (space_id, name, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, space_id, name, created_by, created_at, updated_at
	`, access.SpaceID, name, id.UserID).Scan(
		&board.ID, &board.SpaceID, &board.Name, &board.CreatedBy, &board.CreatedAt, &board.UpdatedAt,
	)
	if err != nil {
		return nil, persistenceErr("create board", err)
	}

	board.Columns = make([]models.KanbanColumn, 0, len(models.DefaultKanbanColumns))
	for i, colName := range models.DefaultKanbanColumns {
		col := models.KanbanColumn{BoardID: board.ID, Name: colName, Position: i, Cards: []models.KanbanCard{}}
		err := tx.QueryRow(ctx, `
			INSERT INTO kanban_column (board_id, name, position)
			VALUES ($1, $2, $3)
			RETURNING id
		`, board.ID, colName, i).Scan(&col.ID)
		if err != nil {
			return nil, persistenceErr("create column", err)
		}
		board.Columns = append(board.Columns, col)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return &board, nil
}

// ListBoards returns every board of the space with columns and cards nested in position order.
func (s *KanbanService) ListBoards(ctx context.Context, id Identity, slug string) ([]models.KanbanBoard, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	access, err := s.members.RequireRole(ctx, id.UserID, SpaceBySlug(slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, space_id, name, created_by, created_at, updated_at
		FROM kanban_board
		WHERE space_id = $1
		ORDER BY created_at
	`, access.SpaceID)
	if err != nil {
		return nil, persistenceErr("list boards", err)
	}

	boards := []models.KanbanBoard{}
	boardIDs := []uuid.UUID{}
	for rows.Next() {
		var b models.KanbanBoard
		if err := rows.Scan(&b.ID, &b.SpaceID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			rows.Close()
			return nil, persistenceErr("scan board", err)
		}
		b.Columns = []models.KanbanColumn{}
		boards = append(boards, b)
		boardIDs = append(boardIDs, b.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list boards", err)
	}
	if len(boards) == 0 {
		return boards, nil
	}

	columns, err := s.loadColumns(ctx, boardIDs)
	if err != nil {
		return nil, err
	}
	for i := range boards {
		for _, col := range columns {
			if col.BoardID == boards[i].ID {
				boards[i].Columns = append(boards[i].Columns, col)
			}
		}
	}
	return boards, nil
}

func (s *KanbanService) loadColumns(ctx context.Context, boardIDs []uuid.UUID) ([]models.KanbanColumn, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, board_id, name, position, color
		FROM kanban_column
		WHERE board_id = ANY($1)
		ORDER BY position
	`, boardIDs)
	if err != nil {
		return nil, persistenceErr("list columns", err)
	}

	columns := []models.KanbanColumn{}
	columnIDs := []uuid.UUID{}
	for rows.Next() {
		var col models.KanbanColumn
		if err := rows.Scan(&col.ID, &col.BoardID, &col.Name, &col.Position, &col.Color); err != nil {
			rows.Close()
			return nil, persistenceErr("scan column", err)
		}
		col.Cards = []models.KanbanCard{}
		columns = append(columns, col)
		columnIDs = append(columnIDs, col.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list columns", err)
	}
	if len(columns) == 0 {
		return columns, nil
	}

	cardRows, err := s.db.Pool.Query(ctx, `
		SELECT `+cardColumns+`
		FROM kanban_card
		WHERE column_id = ANY($1)
		ORDER BY position
	`, columnIDs)
	if err != nil {
		return nil, persistenceErr("list cards", err)
	}
	defer cardRows.Close()

	byColumn := make(map[uuid.UUID]int, len(columns))
	for i, col := range columns {
		byColumn[col.ID] = i
	}
	for cardRows.Next() {
		card, err := scanCard(cardRows)
		if err != nil {
			return nil, persistenceErr("scan card", err)
		}
		if i, ok := byColumn[card.ColumnID]; ok {
			columns[i].Cards = append(columns[i].Cards, *card)
		}
	}
	if err := cardRows.Err(); err != nil {
		return nil, persistenceErr("list cards", err)
	}
	return columns, nil
}

// CreateCard adds a card to a column. The caller must be a member of the column's space.
func (s *KanbanService) CreateCard(ctx context.Context, id Identity, in CardInput) (*models.KanbanCard, error) {
	if in.ColumnID == nil {
		return nil, fmt.Errorf("%w: column_id is required", ErrInvalidInput)
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	access, err := s.gate.Authorize(ctx, id, KindColumn, in.ColumnID.String(), models.RoleMember)
	if err != nil {
		return nil, err
	}

	position := 0
	if in.Position != nil {
		position = *in.Position
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	card, err := scanCard(tx.QueryRow(ctx, `
		INSERT INTO kanban_card (column_id, title, description, position, assignee_id, due_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+cardColumns,
		*in.ColumnID, strings.TrimSpace(*in.Title), in.Description, position, in.AssigneeID, in.DueDate, id.UserID))
	if err != nil {
		return nil, persistenceErr("create card", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceKanbanCard,
		ResourceID:   card.ID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"title": card.Title},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return card, nil
}

// lockCard takes the card row lock so a concurrent move cannot change its column between
// the authorization and the write.
func lockCard(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (createdBy uuid.UUID, title string, err error) {
	err = tx.QueryRow(ctx, `
		SELECT created_by, title FROM kanban_card WHERE id = $1 FOR UPDATE
	`, cardID).Scan(&createdBy, &title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", ErrResourceNotFound
		}
		return uuid.Nil, "", persistenceErr("load card", err)
	}
	return createdBy, title, nil
}

// UpdateCard edits or moves a card. A move checks the caller against both the source and the
// target column, and the target must live in the same space as the card.
func (s *KanbanService) UpdateCard(ctx context.Context, id Identity, cardID uuid.UUID, in CardInput) (*models.KanbanCard, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, _, err := lockCard(ctx, tx, cardID); err != nil {
		return nil, err
	}
	access, err := s.gate.authorizeIn(ctx, tx, id, KindCard, cardID.String(), models.RoleMember)
	if err != nil {
		return nil, err
	}

	if in.ColumnID != nil {
		target, err := s.gate.authorizeIn(ctx, tx, id, KindColumn, in.ColumnID.String(), models.RoleMember)
		if err != nil {
			return nil, err
		}
		if target.SpaceID != access.SpaceID {
			return nil, ErrCrossSpace
		}
	}

	card, err := scanCard(tx.QueryRow(ctx, `
		UPDATE kanban_card SET
			column_id = COALESCE($2, column_id),
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			position = COALESCE($5, position),
			assignee_id = COALESCE($6, assignee_id),
			due_date = COALESCE($7, due_date),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+cardColumns,
		cardID, in.ColumnID, in.Title, in.Description, in.Position, in.AssigneeID, in.DueDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("update card", err)
	}

	details := map[string]any{"title": card.Title}
	if in.ColumnID != nil {
		details["column_id"] = in.ColumnID.String()
	}
	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditUpdate,
		ResourceType: models.ResourceKanbanCard,
		ResourceID:   card.ID.String(),
		SpaceID:      access.SpaceID,
		Details:      details,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit transaction", err)
	}
	return card, nil
}

// DeleteCard lets the card's creator remove it as a member; anyone else needs admin.
func (s *KanbanService) DeleteCard(ctx context.Context, id Identity, cardID uuid.UUID) error {
	if !id.Valid() {
		return ErrUnauthenticated
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	createdBy, title, err := lockCard(ctx, tx, cardID)
	if err != nil {
		return err
	}
	access, err := s.gate.authorizeIn(ctx, tx, id, KindCard, cardID.String(), models.RoleMember)
	if err != nil {
		return err
	}
	if createdBy != id.UserID && !access.Role.Dominates(models.RoleAdmin) {
		return ErrInsufficientRole
	}

	if _, err := tx.Exec(ctx, `DELETE FROM kanban_card WHERE id = $1`, cardID); err != nil {
		return persistenceErr("delete card", err)
	}

	err = s.audit.Record(ctx, tx, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceKanbanCard,
		ResourceID:   cardID.String(),
		SpaceID:      access.SpaceID,
		Details:      map[string]string{"title": title},
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit transaction", err)
	}
	return nil
}
