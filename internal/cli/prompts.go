package cli

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/MarketPulse/models"
)

// Actions offered after an analysis
const (
	actionRefresh = "🔄 Refresh analysis"
	actionSelect  = "📊 Choose another asset"
	actionExit    = "🚪 Exit"
)

// assetOption renders one asset as a select option.
func assetOption(a models.Asset, currency string) string {
	return fmt.Sprintf("%-8s %-14s %s", a.Symbol, truncateString(a.Name, 14), formatMoney(currency, a.Price))
}

// PromptForAsset lets the user pick an asset; it returns the chosen symbol.
func PromptForAsset(assets []models.Asset, selected, currency string) (string, error) {
	if len(assets) == 0 {
		return "", fmt.Errorf("no assets available")
	}

	options := make([]string, len(assets))
	bySymbol := make(map[string]string, len(assets))
	def := ""
	for i, a := range assets {
		options[i] = assetOption(a, currency)
		bySymbol[options[i]] = a.Symbol
		if a.Symbol == selected {
			def = options[i]
		}
	}

	prompt := &survey.Select{
		Message:  "Select an asset to analyse:",
		Options:  options,
		PageSize: 10,
	}
	if def != "" {
		prompt.Default = def
	}

	var choice string
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return bySymbol[choice], nil
}

// PromptForAction asks what to do next with the current selection.
func PromptForAction() (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What next?",
		Options: []string{actionRefresh, actionSelect, actionExit},
		Default: actionRefresh,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return choice, nil
}
