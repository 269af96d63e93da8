// Package rest exposes the Listing Service over JSON/HTTP.
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abdurahmanit/property-service/internal/middleware"
	"github.com/Abdurahmanit/property-service/internal/platform/clock"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/Abdurahmanit/property-service/internal/property/validation"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

const (
	msgInvalidData = "invalid data"
	msgNotFound    = "property not found"
	msgDeleted     = "property deleted"
)

// PropertyService is the subset of the usecase the routes call.
type PropertyService interface {
	List(ctx context.Context) ([]domain.Property, error)
	Get(ctx context.Context, id string) (*domain.Property, error)
	Create(ctx context.Context, in domain.NewProperty) (*domain.Property, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Property, error)
	Delete(ctx context.Context, id string) (bool, error)
	Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error)
}

type Handler struct {
	svc    PropertyService
	schema *validation.Schema
	clock  clock.Clock
	logger *logger.Logger
}

func NewHandler(svc PropertyService, schema *validation.Schema, clk clock.Clock, log *logger.Logger) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		svc:    svc,
		schema: schema,
		clock:  clk,
		logger: log.Named("PropertyHandler"),
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339Nano),
	})
}

// ListProperties serves GET /properties. Any usable query criterion
// switches to the filtered path.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)

	var (
		props []domain.Property
		err   error
	)
	if f.IsEmpty() {
		props, err = h.svc.List(r.Context())
	} else {
		props, err = h.svc.Filter(r.Context(), f)
	}
	if err != nil {
		h.logger.Error("failed to list properties", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch properties")
		return
	}
	if props == nil {
		props = []domain.Property{}
	}
	h.writeJSON(w, http.StatusOK, props)
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, domain.ErrPropertyNotFound) {
		h.writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get property", zap.String("property_id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch property")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	in, err := h.schema.DecodeCreate(body)
	if h.validationFailed(w, err) {
		return
	}

	p, err := h.svc.Create(r.Context(), in)
	if h.validationFailed(w, err) {
		return
	}
	if err != nil {
		h.logger.Error("failed to create property", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create property")
		return
	}
	h.audit(r, "create", p.ID)
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	patch, err := h.schema.DecodeUpdate(body)
	if h.validationFailed(w, err) {
		return
	}

	p, err := h.svc.Update(r.Context(), id, patch)
	if h.validationFailed(w, err) {
		return
	}
	if errors.Is(err, domain.ErrPropertyNotFound) {
		h.writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to update property", zap.String("property_id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to update property")
		return
	}
	h.audit(r, "update", id)
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete property", zap.String("property_id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to delete property")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	h.audit(r, "delete", id)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: msgDeleted})
}

// audit records which authenticated subject performed a write. Nothing is
// logged when writes are unauthenticated.
func (h *Handler) audit(r *http.Request, action, id string) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == "" {
		return
	}
	h.logger.Info("property write",
		zap.String("action", action),
		zap.String("property_id", id),
		zap.String("subject", sub),
		zap.String("request_id", chimw.GetReqID(r.Context())))
}

// pathID reads and shape-checks the {id} route parameter, writing the 400
// itself when it is not a UUID. The id is returned lowercased, the form
// every store keeps.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	if h.validationFailed(w, h.schema.ValidateID(raw)) {
		return "", false
	}
	id, _ := domain.NormalizeID(raw)
	return id, true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.logger.Warn("failed to read request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// validationFailed writes a 400 with field details when err carries them.
func (h *Handler) validationFailed(w http.ResponseWriter, err error) bool {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return false
	}
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidData, Details: verr.Fields})
	return true
}

// parseFilter mirrors the query handling of the public API: blank values,
// non-numbers and zero prices impose no constraint.
func parseFilter(r *http.Request) domain.Filter {
	q := r.URL.Query()
	return domain.Filter{
		City:     q.Get("city"),
		Type:     domain.PropertyType(q.Get("type")),
		MinPrice: parsePrice(q.Get("minPrice")),
		MaxPrice: parsePrice(q.Get("maxPrice")),
	}
}

func parsePrice(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}
