package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"

	"github.com/dyike/MarketPulse/models"
)

// historyContext is how many trailing history points go into the prompt.
const historyContext = 5

const systemTpl = `You are a professional financial analyst covering the {market_region} market.
Answer with a single JSON object and nothing else. The object must follow this schema:
{response_schema}`

const userTpl = `Analyze this financial asset and give a professional trading recommendation.
All prices are quoted in {currency_code}.

Asset: {name} ({symbol})
Current price: {currency_symbol}{price}
24h change: {change_percent}%

Technical indicators:
- RSI: {rsi}
- MACD value: {macd}
- SMA 20: {sma20}
- SMA 50: {sma50}
- Bollinger upper: {bollinger_upper}
- Bollinger lower: {bollinger_lower}

Recent price history in {currency_code} (time, close, volume):
{history}

Weigh trend direction and the current price against the indicators, and give
an actionable, data-backed recommendation for {market_region} market conditions.`

func newTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemTpl),
		schema.UserMessage(userTpl),
	)
}

func promptVariables(asset models.Asset, s Settings) map[string]any {
	schemaJSON, _ := json.Marshal(ResponseSchema())
	ind := asset.Indicators
	return map[string]any{
		"market_region":   s.MarketRegion,
		"response_schema": string(schemaJSON),
		"currency_code":   s.CurrencyCode,
		"currency_symbol": s.CurrencySymbol,
		"name":            asset.Name,
		"symbol":          asset.Symbol,
		"price":           money(asset.Price),
		"change_percent":  money(asset.ChangePercent),
		"rsi":             money(ind.RSI),
		"macd":            decimal.NewFromFloat(ind.MACD.Value).StringFixed(4),
		"sma20":           money(ind.SMA20),
		"sma50":           money(ind.SMA50),
		"bollinger_upper": money(ind.BollingerBands.Upper),
		"bollinger_lower": money(ind.BollingerBands.Lower),
		"history":         historyLines(asset.Tail(historyContext)),
	}
}

func historyLines(points []models.PricePoint) string {
	if len(points) == 0 {
		return "(no history)"
	}
	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s, %s, %d", p.Time, money(p.Close), p.Volume)
	}
	return b.String()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
