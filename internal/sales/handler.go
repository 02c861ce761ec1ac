package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vendaflow/vendaflow/internal/platform/httpx"
)

// Handler manages sale endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.commit)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
	})
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	var req CommitSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	committed, err := h.service.Commit(r.Context(), req)
	if err != nil {
		h.logger.Error("commit sale failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("sale committed",
		"sale_id", committed.Sale.ID,
		"reference", committed.Sale.Reference,
		"total", committed.Sale.Total,
		"method", committed.Sale.Method,
	)
	httpx.JSON(w, http.StatusCreated, committed)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListSalesRequest{Status: SaleStatus(q.Get("status"))}
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "customer_id must be numeric")
			return
		}
		req.CustomerID = id
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "from must be RFC3339")
			return
		}
		req.From = ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "to must be RFC3339")
			return
		}
		req.To = ts
	}
	var err error
	if req.Limit, err = httpx.QueryInt(r, "limit"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "limit must be numeric")
		return
	}
	if req.Offset, err = httpx.QueryInt(r, "offset"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "offset must be numeric")
		return
	}

	out, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list sales failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": out})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}

	sale, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.logger.Error("cancel sale failed", "sale_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("sale cancelled", "sale_id", id, "reference", sale.Reference)
	httpx.JSON(w, http.StatusOK, sale)
}
