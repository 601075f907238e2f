package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/ops"
	"github.com/hpungsan/keepsake/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	st  *store.Store
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{st: st, cfg: cfg}
}

// Request types for each tool

// IDRequest addresses a contributor or capsule by id.
type IDRequest struct {
	ID uint32 `json:"id"`
}

// PageRequest represents the pagination arguments of list tools.
type PageRequest struct {
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

func (p PageRequest) input() ops.ListInput {
	return ops.ListInput{Page: p.Page, PerPage: p.PerPage}
}

// ContributorCreateRequest represents the arguments for contributor_create.
type ContributorCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContributorUpdateRequest represents the arguments for contributor_update.
type ContributorUpdateRequest struct {
	ID    uint32  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// CapsuleCreateRequest represents the arguments for capsule_create.
type CapsuleCreateRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ContributorID uint32    `json:"contributor_id"`
	TimeOpen      time.Time `json:"time_open"`
}

// CapsulePatchRequest represents the arguments for capsule_patch.
type CapsulePatchRequest struct {
	ID          uint32  `json:"id"`
	Version     *uint32 `json:"version,omitempty"`
	ETag        *uint32 `json:"etag,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CapsuleMergeRequest represents the arguments for capsule_merge.
type CapsuleMergeRequest struct {
	CapsuleID1 uint32 `json:"capsule_id_1"`
	CapsuleID2 uint32 `json:"capsule_id_2"`
}

// ItemAddRequest represents the arguments for item_add.
type ItemAddRequest struct {
	CapsuleID   uint32 `json:"capsule_id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Size        string `json:"size,omitempty"`
	Path        string `json:"path,omitempty"`
	Metadata    any    `json:"metadata,omitempty"`
}

// ItemGetRequest represents the arguments for item_get.
type ItemGetRequest struct {
	ItemID    uint32  `json:"item_id"`
	CapsuleID *uint32 `json:"capsule_id,omitempty"`
}

// ItemListRequest represents the arguments for item_list.
type ItemListRequest struct {
	CapsuleID *uint32 `json:"capsule_id,omitempty"`
	PageRequest
}

// ItemPatchRequest represents the arguments for item_patch.
type ItemPatchRequest struct {
	CapsuleID   uint32  `json:"capsule_id"`
	ItemID      uint32  `json:"item_id"`
	Version     *uint32 `json:"version,omitempty"`
	ETag        *uint32 `json:"etag,omitempty"`
	Type        *string `json:"type,omitempty"`
	Description *string `json:"description,omitempty"`
	Size        *string `json:"size,omitempty"`
	Path        *string `json:"path,omitempty"`
	Metadata    any     `json:"metadata,omitempty"`
}

// ItemDeleteRequest represents the arguments for item_delete.
type ItemDeleteRequest struct {
	CapsuleID uint32 `json:"capsule_id"`
	ItemID    uint32 `json:"item_id"`
}

// DeleteResult reports a completed delete.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Kind    string `json:"kind"`
	ID      uint32 `json:"id"`
}

// Handler implementations

// HandleContributorCreate handles the contributor_create tool call.
func (h *Handlers) HandleContributorCreate(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ContributorCreateRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.CreateContributor(ctx, h.st, ops.CreateContributorInput{Name: input.Name, Email: input.Email})
}

// HandleContributorGet handles the contributor_get tool call.
func (h *Handlers) HandleContributorGet(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.GetContributor(ctx, h.st, input.ID)
}

// HandleContributorList handles the contributor_list tool call.
func (h *Handlers) HandleContributorList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.ListContributors(ctx, h.st, h.cfg, input.input())
}

// HandleContributorUpdate handles the contributor_update tool call.
func (h *Handlers) HandleContributorUpdate(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ContributorUpdateRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.UpdateContributor(ctx, h.st, ops.UpdateContributorInput{ID: input.ID, Name: input.Name, Email: input.Email})
}

// HandleContributorDelete handles the contributor_delete tool call.
func (h *Handlers) HandleContributorDelete(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return nil, err
	}
	if err := ops.DeleteContributor(ctx, h.st, input.ID); err != nil {
		return nil, err
	}
	return DeleteResult{Deleted: true, Kind: "contributor", ID: input.ID}, nil
}

// HandleCapsuleCreate handles the capsule_create tool call.
func (h *Handlers) HandleCapsuleCreate(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[CapsuleCreateRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.CreateCapsule(ctx, h.st, h.cfg, ops.CreateCapsuleInput{
		Name:          input.Name,
		Description:   input.Description,
		ContributorID: input.ContributorID,
		TimeOpen:      input.TimeOpen,
	})
}

// HandleCapsuleGet handles the capsule_get tool call.
func (h *Handlers) HandleCapsuleGet(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.GetCapsule(ctx, h.st, input.ID)
}

// HandleCapsuleList handles the capsule_list tool call.
func (h *Handlers) HandleCapsuleList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.ListCapsules(ctx, h.st, h.cfg, input.input())
}

// HandleCapsulePatch handles the capsule_patch tool call.
func (h *Handlers) HandleCapsulePatch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[CapsulePatchRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.PatchCapsule(ctx, h.st, ops.PatchCapsuleInput{
		ID:           input.ID,
		Precondition: ops.Precondition{ETag: input.ETag, BodyVersion: input.Version},
		Name:         input.Name,
		Description:  input.Description,
	})
}

// HandleCapsuleDelete handles the capsule_delete tool call.
func (h *Handlers) HandleCapsuleDelete(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return nil, err
	}
	if err := ops.DeleteCapsule(ctx, h.st, input.ID); err != nil {
		return nil, err
	}
	return DeleteResult{Deleted: true, Kind: "capsule", ID: input.ID}, nil
}

// HandleCapsuleMerge handles the capsule_merge tool call.
func (h *Handlers) HandleCapsuleMerge(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[CapsuleMergeRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.MergeCapsules(ctx, h.st, ops.MergeInput{CapsuleID1: input.CapsuleID1, CapsuleID2: input.CapsuleID2})
}

// HandleItemAdd handles the item_add tool call.
func (h *Handlers) HandleItemAdd(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ItemAddRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.AddItem(ctx, h.st, ops.AddItemInput{
		CapsuleID:   input.CapsuleID,
		Type:        input.Type,
		Description: input.Description,
		Size:        input.Size,
		Path:        input.Path,
		Metadata:    input.Metadata,
	})
}

// HandleItemGet handles the item_get tool call.
func (h *Handlers) HandleItemGet(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ItemGetRequest](req)
	if err != nil {
		return nil, err
	}
	if input.CapsuleID != nil {
		return ops.GetCapsuleItem(ctx, h.st, *input.CapsuleID, input.ItemID)
	}
	return ops.GetItem(ctx, h.st, input.ItemID)
}

// HandleItemList handles the item_list tool call.
func (h *Handlers) HandleItemList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ItemListRequest](req)
	if err != nil {
		return nil, err
	}
	if input.CapsuleID != nil {
		return ops.ListCapsuleItems(ctx, h.st, *input.CapsuleID)
	}
	return ops.ListItems(ctx, h.st, h.cfg, input.input())
}

// HandleItemPatch handles the item_patch tool call.
func (h *Handlers) HandleItemPatch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ItemPatchRequest](req)
	if err != nil {
		return nil, err
	}
	return ops.PatchItem(ctx, h.st, ops.PatchItemInput{
		CapsuleID:    input.CapsuleID,
		ItemID:       input.ItemID,
		Precondition: ops.Precondition{ETag: input.ETag, BodyVersion: input.Version},
		Type:         input.Type,
		Description:  input.Description,
		Size:         input.Size,
		Path:         input.Path,
		Metadata:     input.Metadata,
	})
}

// HandleItemDelete handles the item_delete tool call.
func (h *Handlers) HandleItemDelete(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	input, err := decode[ItemDeleteRequest](req)
	if err != nil {
		return nil, err
	}
	if err := ops.DeleteItem(ctx, h.st, ops.DeleteItemInput{CapsuleID: input.CapsuleID, ItemID: input.ItemID}); err != nil {
		return nil, err
	}
	return DeleteResult{Deleted: true, Kind: "item", ID: input.ItemID}, nil
}

// HandleMergeList handles the merge_list tool call.
func (h *Handlers) HandleMergeList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if _, err := decode[struct{}](req); err != nil {
		return nil, err
	}
	return ops.ListMergeRecords(ctx, h.st)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	kErr, ok := errors.As(err)
	if !ok {
		kErr = errors.NewInternal(err)
	}

	errorObj := map[string]any{
		"code":    kErr.Code,
		"message": kErr.Message,
		"status":  kErr.Status,
	}
	if kErr.Code != errors.ErrInternal && kErr.Details != nil {
		errorObj["details"] = kErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
