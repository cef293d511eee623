package models

type Recommendation string

const (
	RecommendationBuy  Recommendation = "BUY"
	RecommendationHold Recommendation = "HOLD"
	RecommendationSell Recommendation = "SELL"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// AIRecommendation is the result of one analysis request. It is never cached
// and belongs to the caller that asked for it.
type AIRecommendation struct {
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Reasoning      []string       `json:"reasoning"`
	RiskLevel      RiskLevel      `json:"riskLevel"`
	TargetPrice    *float64       `json:"targetPrice,omitempty"`
}
