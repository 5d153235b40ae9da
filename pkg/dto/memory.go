package dto

import "encoding/json"

type UpdateMemoryRequest struct {
	Data json.RawMessage `json:"data"`
}

type AnnotationRequest struct {
	Content string `json:"content"`
}

type BookmarkResponse struct {
	MemoryID   string `json:"memory_id"`
	Bookmarked bool   `json:"bookmarked"`
}

// CreateMemoryRequest ingests Content into the space whose slug is UserID.
type CreateMemoryRequest struct {
	UserID   string         `json:"user_id"`
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	AgentID  string         `json:"agent_id"`
	Metadata map[string]any `json:"metadata"`
}

// SearchRequest searches one space when UserID is set, otherwise every space of the caller.
type SearchRequest struct {
	Query   string `json:"query"`
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id"`
	Limit   int    `json:"limit"`
}

type MemoryListResponse struct {
	Results []json.RawMessage `json:"results"`
}
