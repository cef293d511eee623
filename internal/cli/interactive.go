package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/internal/dashboard"
)

// runInteractiveMode starts the terminal dashboard. The feed keeps ticking in
// the background while the user picks assets.
func runInteractiveMode(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ticker := dashboard.NewTicker(a.dash, cfg.TickIntervalDuration(), log)
	if err := ticker.Start(); err != nil {
		return err
	}
	defer ticker.Stop()

	ClearScreen()
	fmt.Println(RenderBanner())
	fmt.Println()

	symbol := a.dash.Selected()
	choose := true
	for ctx.Err() == nil {
		if choose {
			view := a.dash.View("")
			picked, err := PromptForAsset(view.Assets, symbol, cfg.CurrencySymbol)
			if err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					break
				}
				return err
			}
			symbol = picked
		}

		analyseOnce(ctx, a, cfg, symbol)

		action, err := PromptForAction()
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				break
			}
			return err
		}
		switch action {
		case actionExit:
			fmt.Println("👋 Thank you for using MarketPulse!")
			return nil
		case actionSelect:
			choose = true
		default:
			choose = false
		}
	}

	fmt.Println("👋 Thank you for using MarketPulse!")
	return nil
}

func analyseOnce(ctx context.Context, a *app, cfg *config.Config, symbol string) {
	DisplayInfo(fmt.Sprintf("Analysing %s...", symbol))

	result, err := a.dash.Select(ctx, symbol)
	asset, _ := a.dash.Asset(symbol)
	fmt.Println(RenderAssetDetail(asset, cfg.CurrencySymbol, time.Now()))
	if err != nil {
		fmt.Println(RenderAnalysisError(err, cfg.CredentialEnv))
		return
	}
	if !result.Applied {
		DisplayInfo("A newer request replaced this one")
		return
	}
	fmt.Println(RenderRecommendation(result.Recommendation, cfg.CurrencySymbol))
}
