package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/dyike/MarketPulse/internal/advisor"
	"github.com/dyike/MarketPulse/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2).
			Width(80)

	recommendationStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#F59E0B")).
				Padding(1, 2).
				Width(80)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	holdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

// RenderBanner returns the interactive welcome header.
func RenderBanner() string {
	return titleStyle.Render("📈 MarketPulse | AI market signals") + "\n" +
		mutedStyle.Render("Synthetic quotes, live ticks and model-backed BUY / HOLD / SELL calls")
}

// RenderAssetTable lists assets one per row; the selected row is marked.
func RenderAssetTable(assets []models.Asset, selected, currency string) string {
	var b strings.Builder
	b.WriteString(headerCellStyle.Render(fmt.Sprintf("  %-9s %-14s %16s %9s %12s", "SYMBOL", "NAME", "PRICE", "CHANGE", "VOLUME")))
	b.WriteByte('\n')
	for _, a := range assets {
		marker := "  "
		if a.Symbol == selected {
			marker = "▶ "
		}
		change := changeStyle(a.ChangePercent).Render(fmt.Sprintf("%9s", formatPercent(a.ChangePercent)))
		fmt.Fprintf(&b, "%s%-9s %-14s %16s %s %12s\n",
			marker,
			a.Symbol,
			truncateString(a.Name, 14),
			formatMoney(currency, a.Price),
			change,
			humanize.Comma(a.Volume),
		)
	}
	if len(assets) == 0 {
		b.WriteString(mutedStyle.Render("  no assets match"))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderAssetDetail shows one asset's quote and indicator snapshot.
func RenderAssetDetail(a models.Asset, currency string, updated time.Time) string {
	var content strings.Builder
	fmt.Fprintf(&content, "%s  %s\n\n", headerCellStyle.Render(a.Symbol), a.Name)
	fmt.Fprintf(&content, "Price:      %s  %s\n", formatMoney(currency, a.Price),
		changeStyle(a.Change).Render(fmt.Sprintf("%s (%s)", formatSigned(a.Change), formatPercent(a.ChangePercent))))
	fmt.Fprintf(&content, "High / Low: %s / %s\n", formatMoney(currency, a.High), formatMoney(currency, a.Low))
	fmt.Fprintf(&content, "Volume:     %s\n\n", humanize.Comma(a.Volume))

	ind := a.Indicators
	fmt.Fprintf(&content, "RSI:        %s\n", decimal.NewFromFloat(ind.RSI).StringFixed(2))
	fmt.Fprintf(&content, "MACD:       %s\n", decimal.NewFromFloat(ind.MACD.Value).StringFixed(4))
	fmt.Fprintf(&content, "SMA 20/50:  %s / %s\n", formatMoney(currency, ind.SMA20), formatMoney(currency, ind.SMA50))
	fmt.Fprintf(&content, "Bollinger:  %s / %s", formatMoney(currency, ind.BollingerBands.Upper), formatMoney(currency, ind.BollingerBands.Lower))
	if !updated.IsZero() {
		fmt.Fprintf(&content, "\n\n%s", mutedStyle.Render("Updated "+humanize.Time(updated)))
	}
	return panelStyle.Render(content.String())
}

// RenderRecommendation shows a model call with its reasoning.
func RenderRecommendation(rec models.AIRecommendation, currency string) string {
	var content strings.Builder
	label := fmt.Sprintf("%s  %s%% confidence", rec.Recommendation, decimal.NewFromFloat(rec.Confidence).StringFixed(0))
	content.WriteString(recommendationLabelStyle(rec.Recommendation).Render(label))
	fmt.Fprintf(&content, "\nRisk: %s", rec.RiskLevel)
	if rec.TargetPrice != nil {
		fmt.Fprintf(&content, "   Target: %s", formatMoney(currency, *rec.TargetPrice))
	}
	content.WriteString("\n")
	for _, reason := range rec.Reasoning {
		fmt.Fprintf(&content, "\n• %s", reason)
	}
	return recommendationStyle.Render(content.String())
}

// RenderAnalysisError explains a credential problem and what to do about it.
func RenderAnalysisError(err error, credentialEnv string) string {
	switch {
	case errors.Is(err, advisor.ErrMissingCredential):
		return errorStyle.Render(fmt.Sprintf("🔑 No API key found. Set %s and try again.", credentialEnv))
	case errors.Is(err, advisor.ErrCredentialInvalid):
		return errorStyle.Render(fmt.Sprintf("🔑 The API key in %s was rejected. Select a valid key and refresh.", credentialEnv))
	default:
		return errorStyle.Render(fmt.Sprintf("❌ Error: %s", err.Error()))
	}
}

// DisplayError shows an error message
func DisplayError(err error) {
	fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Error: %s", err.Error())))
}

// DisplayInfo shows an info message
func DisplayInfo(message string) {
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Render("ℹ️  " + message))
}

// ClearScreen clears the terminal screen
func ClearScreen() {
	fmt.Print("\033[2J\033[H")
}

func recommendationLabelStyle(r models.Recommendation) lipgloss.Style {
	switch r {
	case models.RecommendationBuy:
		return upStyle
	case models.RecommendationSell:
		return downStyle
	default:
		return holdStyle
	}
}

func changeStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return upStyle
	case v < 0:
		return downStyle
	default:
		return mutedStyle
	}
}

func formatMoney(currency string, v float64) string {
	return currency + humanize.FormatFloat("#,###.##", v)
}

func formatSigned(v float64) string {
	s := humanize.FormatFloat("#,###.##", v)
	if v > 0 {
		return "+" + s
	}
	return s
}

func formatPercent(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2) + "%"
	if v > 0 {
		return "+" + s
	}
	return s
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
