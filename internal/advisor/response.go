package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyike/MarketPulse/models"
)

var fallbackReasoning = []string{
	"Technical signals are currently mixed",
	"Volume is stabilizing",
	"Wait for clear breakout",
}

// Fallback is returned for every failure other than a credential problem.
func Fallback() models.AIRecommendation {
	reasoning := make([]string, len(fallbackReasoning))
	copy(reasoning, fallbackReasoning)
	return models.AIRecommendation{
		Recommendation: models.RecommendationHold,
		Confidence:     50,
		Reasoning:      reasoning,
		RiskLevel:      models.RiskMedium,
	}
}

// ResponseSchema is the structured-output constraint sent with every request.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"recommendation": map[string]any{
				"type":        "STRING",
				"description": "The trading recommendation: BUY, HOLD, or SELL.",
			},
			"confidence": map[string]any{
				"type":        "NUMBER",
				"description": "Confidence percentage from 0 to 100.",
			},
			"reasoning": map[string]any{
				"type":        "ARRAY",
				"items":       map[string]any{"type": "STRING"},
				"description": "2-3 short bullet points explaining the rationale.",
			},
			"riskLevel": map[string]any{
				"type":        "STRING",
				"description": "The estimated risk: Low, Medium, or High.",
			},
			"targetPrice": map[string]any{
				"type":        "NUMBER",
				"description": "Optional estimated fair value target price.",
			},
		},
		"required": []string{"recommendation", "confidence", "reasoning", "riskLevel"},
	}
}

type replyPayload struct {
	Recommendation *string  `json:"recommendation"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      []string `json:"reasoning"`
	RiskLevel      *string  `json:"riskLevel"`
	TargetPrice    *float64 `json:"targetPrice"`
}

// ParseRecommendation decodes a model reply. Mandatory fields must be present;
// enum strings are passed through as sent.
func ParseRecommendation(content string) (models.AIRecommendation, error) {
	raw := extractJSON(content)
	if raw == "" {
		return models.AIRecommendation{}, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	var p replyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.AIRecommendation{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	switch {
	case p.Recommendation == nil:
		return models.AIRecommendation{}, fmt.Errorf("%w: missing recommendation", ErrMalformedReply)
	case p.Confidence == nil:
		return models.AIRecommendation{}, fmt.Errorf("%w: missing confidence", ErrMalformedReply)
	case p.Reasoning == nil:
		return models.AIRecommendation{}, fmt.Errorf("%w: missing reasoning", ErrMalformedReply)
	case p.RiskLevel == nil:
		return models.AIRecommendation{}, fmt.Errorf("%w: missing riskLevel", ErrMalformedReply)
	}

	return models.AIRecommendation{
		Recommendation: models.Recommendation(*p.Recommendation),
		Confidence:     *p.Confidence,
		Reasoning:      p.Reasoning,
		RiskLevel:      models.RiskLevel(*p.RiskLevel),
		TargetPrice:    p.TargetPrice,
	}, nil
}

// extractJSON strips markdown fences and chatter around the JSON object.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
