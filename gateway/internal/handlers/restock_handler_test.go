package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwmiddleware "github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/restock"
	"github.com/inventra-labs/inventra/gateway/internal/upstream"
)

type fakeRecommender struct {
	gotID     int64
	gotHeader http.Header
	err       error
}

func (f *fakeRecommender) Recommend(_ context.Context, productID int64, header http.Header) (restock.Recommendation, error) {
	f.gotID = productID
	f.gotHeader = header
	if f.err != nil {
		return restock.Recommendation{}, f.err
	}
	return restock.Recommend(productID, 20, 30), nil
}

func postRestock(h *RestockHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/smart-restock", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("Cookie", "session=secret")
	req = req.WithContext(gwmiddleware.WithIdentity(req.Context(), &models.Identity{
		SubjectID: "u-1",
		Role:      models.RoleManager,
	}))
	rr := httptest.NewRecorder()
	h.SmartRestock(rr, req)
	return rr
}

func TestSmartRestock(t *testing.T) {
	rec := &fakeRecommender{}
	rr := postRestock(NewRestockHandler(rec, nil), `{"product_id": 42}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got restock.Recommendation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, restock.RiskHigh, got.RiskLevel)
	assert.Equal(t, int64(10), got.RestockQuantity)

	assert.Equal(t, int64(42), rec.gotID)
	assert.Equal(t, "Bearer abc", rec.gotHeader.Get("Authorization"))
	assert.Equal(t, "u-1", rec.gotHeader.Get("X-User-Id"))
	assert.Equal(t, "manager", rec.gotHeader.Get("X-User-Role"))
	assert.Empty(t, rec.gotHeader.Get("Cookie"))
}

func TestSmartRestock_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"missing product id", `{}`, nil, http.StatusBadRequest},
		{"negative product id", `{"product_id": -1}`, nil, http.StatusBadRequest},
		{"non-numeric product id", `{"product_id": "7"}`, nil, http.StatusBadRequest},
		{"unknown product", `{"product_id": 7}`, restock.ErrProductNotFound, http.StatusNotFound},
		{"stock unavailable", `{"product_id": 7}`,
			&restock.UpstreamError{Service: restock.ServiceStock, Kind: upstream.KindUnavailable}, http.StatusServiceUnavailable},
		{"prediction timeout", `{"product_id": 7}`,
			&restock.UpstreamError{Service: restock.ServicePrediction, Kind: upstream.KindTimeout}, http.StatusGatewayTimeout},
		{"prediction broken", `{"product_id": 7}`,
			&restock.UpstreamError{Service: restock.ServicePrediction, Kind: upstream.KindInternal}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postRestock(NewRestockHandler(&fakeRecommender{err: tt.err}, nil), tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}
