package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/metrics"
	"github.com/hpungsan/keepsake/internal/ops"
	"github.com/hpungsan/keepsake/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	st       *store.Store
	cfg      *config.Config
	metrics  *metrics.Metrics
	renderer *Renderer
}

// finish records the operation and writes either err or out with status.
func (h *Handlers) finish(w http.ResponseWriter, r *http.Request, op string, start time.Time, status int, out any, err error) {
	h.metrics.Observe(op, start, err)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if out == nil {
		w.WriteHeader(status)
		return
	}
	renderJSON(w, status, out)
}

// --- contributors ---

type createContributorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateContributorRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// HandleCreateContributor handles POST /contributors.
func (h *Handlers) HandleCreateContributor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body createContributorRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "contributor_create", start, 0, nil, err)
		return
	}
	out, err := ops.CreateContributor(r.Context(), h.st, ops.CreateContributorInput{Name: body.Name, Email: body.Email})
	h.finish(w, r, "contributor_create", start, http.StatusCreated, out, err)
}

// HandleListContributors handles GET /contributors.
func (h *Handlers) HandleListContributors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	in, err := parseListInput(r)
	if err != nil {
		h.finish(w, r, "contributor_list", start, 0, nil, err)
		return
	}
	out, err := ops.ListContributors(r.Context(), h.st, h.cfg, in)
	if err == nil {
		setPagination(w, out.Pagination)
	}
	h.finish(w, r, "contributor_list", start, http.StatusOK, out, err)
}

// HandleGetContributor handles GET /contributors/{id}.
func (h *Handlers) HandleGetContributor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "contributor_get", start, 0, nil, err)
		return
	}
	out, err := ops.GetContributor(r.Context(), h.st, id)
	h.finish(w, r, "contributor_get", start, http.StatusOK, out, err)
}

// HandleUpdateContributor handles PATCH /contributors/{id}.
func (h *Handlers) HandleUpdateContributor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "contributor_update", start, 0, nil, err)
		return
	}
	var body updateContributorRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "contributor_update", start, 0, nil, err)
		return
	}
	out, err := ops.UpdateContributor(r.Context(), h.st, ops.UpdateContributorInput{ID: id, Name: body.Name, Email: body.Email})
	h.finish(w, r, "contributor_update", start, http.StatusOK, out, err)
}

// HandleDeleteContributor handles DELETE /contributors/{id}.
func (h *Handlers) HandleDeleteContributor(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err == nil {
		err = ops.DeleteContributor(r.Context(), h.st, id)
	}
	h.finish(w, r, "contributor_delete", start, http.StatusNoContent, nil, err)
}

// --- capsules ---

type createCapsuleRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ContributorID uint32    `json:"contributor_id"`
	TimeOpen      time.Time `json:"time_open"`
}

type patchCapsuleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Version     *uint32 `json:"version"`
}

// HandleCreateCapsule handles POST /capsules.
func (h *Handlers) HandleCreateCapsule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var body createCapsuleRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "capsule_create", start, 0, nil, err)
		return
	}
	out, err := ops.CreateCapsule(r.Context(), h.st, h.cfg, ops.CreateCapsuleInput{
		Name:          body.Name,
		Description:   body.Description,
		ContributorID: body.ContributorID,
		TimeOpen:      body.TimeOpen,
	})
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "capsule_create", start, http.StatusCreated, out, err)
}

// HandleListCapsules handles GET /capsules.
func (h *Handlers) HandleListCapsules(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	in, err := parseListInput(r)
	if err != nil {
		h.finish(w, r, "capsule_list", start, 0, nil, err)
		return
	}
	out, err := ops.ListCapsules(r.Context(), h.st, h.cfg, in)
	if err == nil {
		setPagination(w, out.Pagination)
	}
	h.finish(w, r, "capsule_list", start, http.StatusOK, out, err)
}

// HandleGetCapsule handles GET /capsules/{id}.
func (h *Handlers) HandleGetCapsule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "capsule_get", start, 0, nil, err)
		return
	}
	out, err := ops.GetCapsule(r.Context(), h.st, id)
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "capsule_get", start, http.StatusOK, out, err)
}

// HandlePreview handles GET /capsules/{id}/preview: the capsule as HTML with
// its description rendered from markdown.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "capsule_preview", start, 0, nil, err)
		return
	}
	c, err := ops.GetCapsule(r.Context(), h.st, id)
	if err != nil {
		h.finish(w, r, "capsule_preview", start, 0, nil, err)
		return
	}
	items, err := ops.ListCapsuleItems(r.Context(), h.st, id)
	if err != nil {
		h.finish(w, r, "capsule_preview", start, 0, nil, err)
		return
	}
	h.metrics.Observe("capsule_preview", start, nil)

	setETag(w, c.Version)
	h.renderer.renderPage(w, r, "preview", PreviewPageData{
		Title:       c.Name,
		Version:     h.renderer.version,
		Capsule:     *c,
		Description: renderMarkdown(c.Description),
		Items:       items.Items,
	})
}

// HandlePatchCapsule handles PATCH /capsules/{id}?etag=N.
func (h *Handlers) HandlePatchCapsule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "capsule_patch", start, 0, nil, err)
		return
	}
	etag, err := queryVersion(r)
	if err != nil {
		h.finish(w, r, "capsule_patch", start, 0, nil, err)
		return
	}
	var body patchCapsuleRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "capsule_patch", start, 0, nil, err)
		return
	}
	out, err := ops.PatchCapsule(r.Context(), h.st, ops.PatchCapsuleInput{
		ID:           id,
		Precondition: ops.Precondition{ETag: etag, BodyVersion: body.Version},
		Name:         body.Name,
		Description:  body.Description,
	})
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "capsule_patch", start, http.StatusOK, out, err)
}

// HandleDeleteCapsule handles DELETE /capsules/{id}.
func (h *Handlers) HandleDeleteCapsule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err == nil {
		err = ops.DeleteCapsule(r.Context(), h.st, id)
	}
	h.finish(w, r, "capsule_delete", start, http.StatusNoContent, nil, err)
}

// --- items ---

type addItemRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Size        string `json:"size"`
	Path        string `json:"path"`
	Metadata    any    `json:"metadata"`
}

type patchItemRequest struct {
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Size        *string `json:"size"`
	Path        *string `json:"path"`
	Metadata    any     `json:"metadata"`
	Version     *uint32 `json:"version"`
}

// HandleListCapsuleItems handles GET /capsules/{id}/items.
func (h *Handlers) HandleListCapsuleItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "item_list", start, 0, nil, err)
		return
	}
	out, err := ops.ListCapsuleItems(r.Context(), h.st, id)
	h.finish(w, r, "item_list", start, http.StatusOK, out, err)
}

// HandleAddItem handles POST /capsules/{id}/items.
func (h *Handlers) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "item_add", start, 0, nil, err)
		return
	}
	var body addItemRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "item_add", start, 0, nil, err)
		return
	}
	out, err := ops.AddItem(r.Context(), h.st, ops.AddItemInput{
		CapsuleID:   id,
		Type:        body.Type,
		Description: body.Description,
		Size:        body.Size,
		Path:        body.Path,
		Metadata:    body.Metadata,
	})
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "item_add", start, http.StatusCreated, out, err)
}

// HandleGetCapsuleItem handles GET /capsules/{id}/items/{item_id}.
func (h *Handlers) HandleGetCapsuleItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	capsuleID, itemID, err := itemPath(r)
	if err != nil {
		h.finish(w, r, "item_get", start, 0, nil, err)
		return
	}
	out, err := ops.GetCapsuleItem(r.Context(), h.st, capsuleID, itemID)
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "item_get", start, http.StatusOK, out, err)
}

// HandlePatchItem handles PATCH /capsules/{id}/items/{item_id}?etag=N.
func (h *Handlers) HandlePatchItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	capsuleID, itemID, err := itemPath(r)
	if err != nil {
		h.finish(w, r, "item_patch", start, 0, nil, err)
		return
	}
	etag, err := queryVersion(r)
	if err != nil {
		h.finish(w, r, "item_patch", start, 0, nil, err)
		return
	}
	var body patchItemRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.finish(w, r, "item_patch", start, 0, nil, err)
		return
	}
	out, err := ops.PatchItem(r.Context(), h.st, ops.PatchItemInput{
		CapsuleID:    capsuleID,
		ItemID:       itemID,
		Precondition: ops.Precondition{ETag: etag, BodyVersion: body.Version},
		Type:         body.Type,
		Description:  body.Description,
		Size:         body.Size,
		Path:         body.Path,
		Metadata:     body.Metadata,
	})
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "item_patch", start, http.StatusOK, out, err)
}

// HandleDeleteItem handles DELETE /capsules/{id}/items/{item_id}.
func (h *Handlers) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	capsuleID, itemID, err := itemPath(r)
	if err == nil {
		err = ops.DeleteItem(r.Context(), h.st, ops.DeleteItemInput{CapsuleID: capsuleID, ItemID: itemID})
	}
	h.finish(w, r, "item_delete", start, http.StatusNoContent, nil, err)
}

// HandleListItems handles GET /items.
func (h *Handlers) HandleListItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	in, err := parseListInput(r)
	if err != nil {
		h.finish(w, r, "item_list", start, 0, nil, err)
		return
	}
	out, err := ops.ListItems(r.Context(), h.st, h.cfg, in)
	if err == nil {
		setPagination(w, out.Pagination)
	}
	h.finish(w, r, "item_list", start, http.StatusOK, out, err)
}

// HandleGetItem handles GET /items/{id}.
func (h *Handlers) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		h.finish(w, r, "item_get", start, 0, nil, err)
		return
	}
	out, err := ops.GetItem(r.Context(), h.st, id)
	if err == nil {
		setETag(w, out.Version)
	}
	h.finish(w, r, "item_get", start, http.StatusOK, out, err)
}

// --- merges ---

// HandleMerge handles POST /merges/{id1}/{id2}.
func (h *Handlers) HandleMerge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id1, err := pathID(r, "id1")
	if err != nil {
		h.finish(w, r, "capsule_merge", start, 0, nil, err)
		return
	}
	id2, err := pathID(r, "id2")
	if err != nil {
		h.finish(w, r, "capsule_merge", start, 0, nil, err)
		return
	}
	out, err := ops.MergeCapsules(r.Context(), h.st, ops.MergeInput{CapsuleID1: id1, CapsuleID2: id2})
	h.finish(w, r, "capsule_merge", start, http.StatusOK, out, err)
}

// HandleListMerges handles GET /merges.
func (h *Handlers) HandleListMerges(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out, err := ops.ListMergeRecords(r.Context(), h.st)
	h.finish(w, r, "merge_list", start, http.StatusOK, out, err)
}

// --- request parsing ---

// decodeBody decodes a JSON request body into v. Unknown fields and trailing
// data are rejected. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if dec.More() {
		return errors.NewInvalidRequest("invalid JSON body: trailing data")
	}
	return nil
}

// pathID parses a uint32 path segment.
func pathID(r *http.Request, name string) (uint32, error) {
	raw := r.PathValue(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be an unsigned 32-bit integer, got %q", name, raw))
	}
	return uint32(v), nil
}

func itemPath(r *http.Request) (capsuleID, itemID uint32, err error) {
	if capsuleID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	if itemID, err = pathID(r, "item_id"); err != nil {
		return 0, 0, err
	}
	return capsuleID, itemID, nil
}

// queryVersion parses the optional etag query parameter.
func queryVersion(r *http.Request) (*uint32, error) {
	raw := r.URL.Query().Get("etag")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("etag must be an unsigned 32-bit integer, got %q", raw))
	}
	version := uint32(v)
	return &version, nil
}

// parseListInput parses page and per_page query parameters.
func parseListInput(r *http.Request) (ops.ListInput, error) {
	var in ops.ListInput
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &in.Page}, {"per_page", &in.PerPage}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return in, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer, got %q", p.name, raw))
		}
		*p.dst = v
	}
	return in, nil
}

// setPagination mirrors list pagination in response headers.
func setPagination(w http.ResponseWriter, p ops.Pagination) {
	w.Header().Set("X-Total-Count", strconv.Itoa(p.Total))
	w.Header().Set("X-Page", strconv.Itoa(p.Page))
	w.Header().Set("X-Per-Page", strconv.Itoa(p.PerPage))
}
