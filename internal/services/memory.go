package services

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dimitrije/memorai-api/internal/database"
	"github.com/dimitrije/memorai-api/internal/logger"
	"github.com/dimitrije/memorai-api/internal/memory"
	"github.com/dimitrije/memorai-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// MemoryStore is the full memory service client.
type MemoryStore interface {
	MemoryFetcher
	List(ctx context.Context, slug, agentID string) ([]json.RawMessage, error)
	Create(ctx context.Context, req memory.CreateRequest) (json.RawMessage, error)
	Search(ctx context.Context, req memory.SearchRequest) ([]json.RawMessage, error)
	Update(ctx context.Context, id string, data json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, id string) error
}

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	// minIngestLength rejects content too short to yield a memory.
	minIngestLength = 10
	// searchFanout bounds concurrent upstream searches across the caller's spaces.
	searchFanout = 4
	ingestAgent  = "context-composer"
)

// IngestInput is raw content to be chunked into a space's memories.
type IngestInput struct {
	Slug     string
	Content  string
	Source   string
	AgentID  string
	Metadata map[string]any
}

// IngestResult reports one upstream result per chunk, in chunk order.
type IngestResult struct {
	Source          string            `json:"source"`
	ChunksProcessed int               `json:"chunks_processed"`
	Results         []json.RawMessage `json:"results"`
}

// SearchInput scopes a query to Slug, or to every space of the caller when Slug is empty.
type SearchInput struct {
	Query   string
	Slug    string
	AgentID string
	Limit   int
}

// MemoryService fronts the external memory service. Reads need member of the owning space;
// writes and deletes need admin.
type MemoryService struct {
	db    *database.DB
	store MemoryStore
	gate  *Gate
	audit *AuditRecorder
}

func NewMemoryService(db *database.DB, store MemoryStore, gate *Gate, audit *AuditRecorder) *MemoryService {
	return &MemoryService{db: db, store: store, gate: gate, audit: audit}
}

func upstreamErr(err error) error {
	if errors.Is(err, memory.ErrNotFound) {
		return ErrResourceNotFound
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// List returns the memories of a space. Requires member.
func (s *MemoryService) List(ctx context.Context, id Identity, slug, agentID string) ([]json.RawMessage, error) {
	if _, err := s.gate.AuthorizeSpace(ctx, id, SpaceBySlug(slug), models.RoleMember); err != nil {
		return nil, err
	}

	results, err := s.store.List(ctx, slug, agentID)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return results, nil
}

// Create chunks content and stores each chunk as a memory of the space. Requires member.
// A failed chunk is reported in place; the call fails only when no chunk was stored.
func (s *MemoryService) Create(ctx context.Context, id Identity, in IngestInput) (*IngestResult, error) {
	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) < minIngestLength {
		return nil, fmt.Errorf("%w: content too short to process", ErrInvalidInput)
	}
	access, err := s.gate.AuthorizeSpace(ctx, id, SpaceBySlug(in.Slug), models.RoleMember)
	if err != nil {
		return nil, err
	}

	agentID := in.AgentID
	if agentID == "" {
		agentID = ingestAgent
	}

	chunks := memory.Chunk(content, memory.ChunkSize, memory.ChunkOverlap)
	result := &IngestResult{Source: in.Source, ChunksProcessed: len(chunks), Results: make([]json.RawMessage, 0, len(chunks))}
	var stored int
	var lastErr error
	for i, chunk := range chunks {
		metadata := make(map[string]any, len(in.Metadata)+3)
		maps.Copy(metadata, in.Metadata)
		metadata["source"] = in.Source
		metadata["chunk_index"] = i
		metadata["total_chunks"] = len(chunks)

		out, err := s.store.Create(ctx, memory.CreateRequest{
			Messages: []memory.Message{{Role: "user", Content: chunk}},
			UserID:   in.Slug,
			AgentID:  agentID,
			Metadata: metadata,
		})
		if err != nil {
			logger.Warn().Err(err).Str("space", in.Slug).Int("chunk", i).Msg("memory chunk ingest failed")
			lastErr = err
			out, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("failed to process chunk %d", i)})
		} else {
			stored++
			if len(out) == 0 {
				out = json.RawMessage(`{}`)
			}
		}
		result.Results = append(result.Results, out)
	}
	if stored == 0 {
		return nil, upstreamErr(lastErr)
	}

	err = s.audit.Record(ctx, s.db.Pool, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditCreate,
		ResourceType: models.ResourceMemory,
		SpaceID:      access.SpaceID,
		Details:      map[string]any{"source": in.Source, "chunks": len(chunks), "stored": stored},
	})
	if err != nil {
		logger.Error().Err(err).Str("space", in.Slug).Msg("memories created but audit write failed")
		return nil, err
	}
	return result, nil
}

// Search runs the query against one space, or against every space the caller belongs to.
// Merged results are ordered by descending score.
func (s *MemoryService) Search(ctx context.Context, id Identity, in SearchInput) ([]json.RawMessage, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	var slugs []string
	if in.Slug != "" {
		if _, err := s.gate.AuthorizeSpace(ctx, id, SpaceBySlug(in.Slug), models.RoleMember); err != nil {
			return nil, err
		}
		slugs = []string{in.Slug}
	} else {
		if !id.Valid() {
			return nil, ErrUnauthenticated
		}
		var err error
		if slugs, err = s.gate.members.Slugs(ctx, id.UserID); err != nil {
			return nil, err
		}
	}

	perSpace := make([][]json.RawMessage, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchFanout)
	for i, slug := range slugs {
		g.Go(func() error {
			results, err := s.store.Search(gctx, memory.SearchRequest{Query: query, UserID: slug, AgentID: in.AgentID, Limit: limit})
			if err != nil {
				return err
			}
			perSpace[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstreamErr(err)
	}

	merged := []json.RawMessage{}
	for _, results := range perSpace {
		merged = append(merged, results...)
	}
	if len(slugs) > 1 {
		slices.SortStableFunc(merged, func(a, b json.RawMessage) int {
			return cmp.Compare(scoreOf(b), scoreOf(a))
		})
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// scoreOf sorts unscored results last.
func scoreOf(raw json.RawMessage) float64 {
	var hit struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &hit); err != nil || hit.Score == nil {
		return math.Inf(-1)
	}
	return *hit.Score
}

func (s *MemoryService) Get(ctx context.Context, id Identity, memoryID string) (*memory.Record, error) {
	_, rec, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update forwards data to the memory service and audits the change once upstream accepted it.
func (s *MemoryService) Update(ctx context.Context, id Identity, memoryID string, data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidInput)
	}
	access, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, memoryID, data)
	if err != nil {
		return nil, upstreamErr(err)
	}

	err = s.audit.Record(ctx, s.db.Pool, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditUpdate,
		ResourceType: models.ResourceMemory,
		ResourceID:   memoryID,
		SpaceID:      access.SpaceID,
	})
	if err != nil {
		logger.Error().Err(err).Str("memory_id", memoryID).Msg("memory updated but audit write failed")
		return nil, err
	}
	return updated, nil
}

func (s *MemoryService) Delete(ctx context.Context, id Identity, memoryID string) error {
	access, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleAdmin)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, memoryID); err != nil {
		return upstreamErr(err)
	}

	err = s.audit.Record(ctx, s.db.Pool, AuditRecord{
		ActorID:      id.UserID,
		Action:       models.AuditDelete,
		ResourceType: models.ResourceMemory,
		ResourceID:   memoryID,
		SpaceID:      access.SpaceID,
	})
	if err != nil {
		logger.Error().Err(err).Str("memory_id", memoryID).Msg("memory deleted but audit write failed")
		return err
	}
	return nil
}

// Annotations are private: every query is scoped to the caller's own rows.
func (s *MemoryService) ListAnnotations(ctx context.Context, id Identity, memoryID string) ([]models.Annotation, error) {
	if _, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, memory_id, user_id, content, created_at, updated_at
		FROM memory_annotation
		WHERE memory_id = $1 AND user_id = $2
		ORDER BY created_at
	`, memoryID, id.UserID)
	if err != nil {
		return nil, persistenceErr("list annotations", err)
	}
	defer rows.Close()

	annotations := []models.Annotation{}
	for rows.Next() {
		var a models.Annotation
		if err := rows.Scan(&a.ID, &a.MemoryID, &a.UserID, &a.Content, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, persistenceErr("scan annotation", err)
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list annotations", err)
	}
	return annotations, nil
}

func (s *MemoryService) CreateAnnotation(ctx context.Context, id Identity, memoryID, content string) (*models.Annotation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if _, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember); err != nil {
		return nil, err
	}

	var a models.Annotation
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO memory_annotation (memory_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, memory_id, user_id, content, created_at, updated_at
	`, memoryID, id.UserID, content).Scan(&a.ID, &a.MemoryID, &a.UserID, &a.Content, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, persistenceErr("create annotation", err)
	}
	return &a, nil
}

func (s *MemoryService) UpdateAnnotation(ctx context.Context, id Identity, memoryID string, annotationID uuid.UUID, content string) (*models.Annotation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if _, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember); err != nil {
		return nil, err
	}

	var a models.Annotation
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE memory_annotation SET content = $1, updated_at = NOW()
		WHERE id = $2 AND memory_id = $3 AND user_id = $4
		RETURNING id, memory_id, user_id, content, created_at, updated_at
	`, content, annotationID, memoryID, id.UserID).Scan(&a.ID, &a.MemoryID, &a.UserID, &a.Content, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, persistenceErr("update annotation", err)
	}
	return &a, nil
}

func (s *MemoryService) DeleteAnnotation(ctx context.Context, id Identity, memoryID string, annotationID uuid.UUID) error {
	if _, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember); err != nil {
		return err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		DELETE FROM memory_annotation
		WHERE id = $1 AND memory_id = $2 AND user_id = $3
	`, annotationID, memoryID, id.UserID)
	if err != nil {
		return persistenceErr("delete annotation", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// ToggleBookmark flips the caller's bookmark on the memory and reports whether it is now set.
func (s *MemoryService) ToggleBookmark(ctx context.Context, id Identity, memoryID string) (bool, error) {
	if _, _, err := s.gate.AuthorizeMemory(ctx, id, memoryID, models.RoleMember); err != nil {
		return false, err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		DELETE FROM memory_bookmark WHERE memory_id = $1 AND user_id = $2
	`, memoryID, id.UserID)
	if err != nil {
		return false, persistenceErr("remove bookmark", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO memory_bookmark (memory_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (memory_id, user_id) DO NOTHING
	`, memoryID, id.UserID)
	if err != nil {
		return false, persistenceErr("add bookmark", err)
	}
	return true, nil
}

// ListBookmarks returns the caller's own bookmarks, highest priority first.
func (s *MemoryService) ListBookmarks(ctx context.Context, id Identity) ([]models.Bookmark, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, memory_id, user_id, priority, created_at
		FROM memory_bookmark
		WHERE user_id = $1
		ORDER BY priority DESC, created_at DESC
	`, id.UserID)
	if err != nil {
		return nil, persistenceErr("list bookmarks", err)
	}
	defer rows.Close()

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.ID, &b.MemoryID, &b.UserID, &b.Priority, &b.CreatedAt); err != nil {
			return nil, persistenceErr("scan bookmark", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list bookmarks", err)
	}
	return bookmarks, nil
}
