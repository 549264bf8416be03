package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/common/middleware"
	gwmiddleware "github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/proxy"
	"github.com/inventra-labs/inventra/gateway/internal/restock"
	"github.com/inventra-labs/inventra/gateway/internal/upstream"
)

// Recommender produces a restock recommendation for a product.
type Recommender interface {
	Recommend(ctx context.Context, productID int64, header http.Header) (restock.Recommendation, error)
}

type RestockHandler struct {
	recommender Recommender
	logger      *logging.Logger
}

func NewRestockHandler(recommender Recommender, logger *logging.Logger) *RestockHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RestockHandler{recommender: recommender, logger: logger}
}

type restockRequest struct {
	ProductID int64 `json:"product_id"`
}

// SmartRestock handles POST /api/smart-restock. It must run behind a role
// check.
func (h *RestockHandler) SmartRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.ProductID <= 0 {
		httputil.WriteValidationError(w, "product_id must be a positive integer")
		return
	}

	rec, err := h.recommender.Recommend(r.Context(), req.ProductID, forwardHeaders(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *RestockHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *restock.UpstreamError
	switch {
	case errors.Is(err, restock.ErrProductNotFound):
		httputil.WriteNotFoundError(w, "Product not found")
	case errors.As(err, &ue):
		if ue.Kind == upstream.KindCanceled {
			h.logger.InfoContext(r.Context(), "Client canceled restock request", logging.Upstream(ue.Service))
		} else {
			h.logger.WarnContext(r.Context(), "Restock upstream call failed",
				logging.Upstream(ue.Service),
				"kind", ue.Kind.String(),
				logging.Error(ue.Err),
			)
		}
		upstream.WriteError(w, ue.Kind, ue.Service)
	default:
		h.logger.ErrorContext(r.Context(), "Restock recommendation failed", logging.Error(err))
		httputil.WriteInternalError(w)
	}
}

// forwardHeaders selects the request headers the stock and prediction
// services receive. The identity headers come from the verified credential.
func forwardHeaders(r *http.Request) http.Header {
	h := make(http.Header)
	if v := r.Header.Get("Authorization"); v != "" {
		h.Set("Authorization", v)
	}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set("X-Request-ID", id)
	}
	if identity := gwmiddleware.IdentityFromContext(r.Context()); identity != nil {
		h.Set(proxy.HeaderUserID, identity.SubjectID)
		h.Set(proxy.HeaderUserRole, string(identity.Role))
	}
	return h
}
