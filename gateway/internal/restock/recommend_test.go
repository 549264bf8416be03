package restock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name         string
		stock        int64
		demand       int64
		wantRisk     Risk
		wantQuantity int64
		wantAction   string
	}{
		{"demand above stock", 40, 70, RiskHigh, 30, ActionRestockImmediately},
		{"one over stock", 100, 101, RiskHigh, 1, ActionRestockImmediately},
		{"empty shelf", 0, 5, RiskHigh, 5, ActionRestockImmediately},
		{"demand equals stock", 100, 100, RiskMedium, 10, ActionPrepareRestock},
		{"demand just above 80 percent", 100, 95, RiskMedium, 5, ActionPrepareRestock},
		{"buffer floors at zero", 100, 81, RiskMedium, 0, ActionPrepareRestock},
		{"exactly 80 percent", 100, 80, RiskLow, 0, ActionNone},
		{"comfortable", 200, 50, RiskLow, 0, ActionNone},
		{"no stock no demand", 0, 0, RiskLow, 0, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(7, tt.stock, tt.demand)

			assert.Equal(t, int64(7), rec.ProductID)
			assert.Equal(t, tt.stock, rec.CurrentStock)
			assert.Equal(t, tt.demand, rec.PredictedDemand)
			assert.Equal(t, tt.wantRisk, rec.RiskLevel)
			assert.Equal(t, tt.wantQuantity, rec.RestockQuantity)
			assert.Equal(t, tt.wantAction, rec.Action)
		})
	}
}
