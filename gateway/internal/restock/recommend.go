// Package restock combines current stock and demand forecasts into restock
// recommendations.
package restock

// Risk is the stockout risk for the next seven days.
type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
	RiskLow    Risk = "low"
)

const (
	ActionRestockImmediately = "restock_immediately"
	ActionPrepareRestock     = "prepare_restock"
	ActionNone               = "none"
)

// safetyBuffer is added to medium-risk restock quantities.
const safetyBuffer = 10

type Recommendation struct {
	ProductID       int64  `json:"product_id"`
	CurrentStock    int64  `json:"current_stock"`
	PredictedDemand int64  `json:"predicted_demand_7_days"`
	RiskLevel       Risk   `json:"risk_level"`
	RestockQuantity int64  `json:"restock_quantity"`
	Action          string `json:"action"`
}

// Recommend classifies demand against stock. Demand above stock is high risk;
// demand above 80% of stock is medium risk.
func Recommend(productID, stock, demand int64) Recommendation {
	rec := Recommendation{
		ProductID:       productID,
		CurrentStock:    stock,
		PredictedDemand: demand,
		RiskLevel:       RiskLow,
		Action:          ActionNone,
	}

	switch {
	case demand > stock:
		rec.RiskLevel = RiskHigh
		rec.RestockQuantity = demand - stock
		rec.Action = ActionRestockImmediately
	case float64(demand) > 0.8*float64(stock):
		rec.RiskLevel = RiskMedium
		rec.RestockQuantity = max(0, demand-stock+safetyBuffer)
		rec.Action = ActionPrepareRestock
	}
	return rec
}
