package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyike/MarketPulse/models"
)

// DefaultInstruments is the built-in watch list. All prices are in INR.
func DefaultInstruments() []models.Instrument {
	return []models.Instrument{
		{Symbol: "XAU/INR", Name: "Gold Spot", BasePrice: 171822.00},
		{Symbol: "XAG/INR", Name: "Silver Spot", BasePrice: 2075.00},
		{Symbol: "AAPL", Name: "Apple Inc.", BasePrice: 15431.00},
		{Symbol: "NVDA", Name: "NVIDIA Corp.", BasePrice: 60268.00},
		{Symbol: "BTC/INR", Name: "Bitcoin", BasePrice: 4327620.00},
		{Symbol: "TSLA", Name: "Tesla, Inc.", BasePrice: 16066.00},
	}
}

type instrumentsFile struct {
	Instruments []models.Instrument `yaml:"instruments"`
}

// LoadInstruments reads a YAML watch list. An empty path yields the built-in list.
func LoadInstruments(path string) ([]models.Instrument, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultInstruments(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}

	var file instrumentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	if err := ValidateInstruments(file.Instruments); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file.Instruments, nil
}

// ValidateInstruments checks that symbols are present and unique and base prices positive.
func ValidateInstruments(instruments []models.Instrument) error {
	if len(instruments) == 0 {
		return fmt.Errorf("no instruments configured")
	}
	seen := make(map[string]bool, len(instruments))
	for i, inst := range instruments {
		symbol := strings.TrimSpace(inst.Symbol)
		if symbol == "" {
			return fmt.Errorf("instrument %d: symbol is required", i)
		}
		if seen[symbol] {
			return fmt.Errorf("instrument %d: duplicate symbol %s", i, symbol)
		}
		seen[symbol] = true
		if inst.BasePrice <= 0 {
			return fmt.Errorf("instrument %s: base_price must be positive", symbol)
		}
	}
	return nil
}
