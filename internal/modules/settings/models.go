// Package settings owns the user's display and refresh preferences.
package settings

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// Refresh interval bounds in seconds
const (
	MinRefreshIntervalSeconds = 5
	MaxRefreshIntervalSeconds = 86400
)

// Themes
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// SettingDefaults are the settings of a fresh install
var SettingDefaults = domain.Settings{
	DisplayCurrency:          domain.BaseCurrency,
	RefreshIntervalSeconds:   60,
	AutoRefresh:              true,
	HideValues:               false,
	ShowPricesInBaseCurrency: false,
	ShowTargetPrices:         false,
	Theme:                    ThemeSystem,
}

// SettingDescriptions holds human-readable descriptions keyed by JSON field name
var SettingDescriptions = map[string]string{
	"display_currency":             "Currency used to display portfolio values. Prices are fetched in USD and converted.",
	"refresh_interval_seconds":     "Seconds between automatic price refreshes (5 to 86400)",
	"auto_refresh":                 "Refresh prices automatically while the portfolio is visible",
	"hide_values":                  "Mask monetary values in portfolio responses",
	"show_prices_in_base_currency": "Show per-asset prices in USD instead of the display currency",
	"show_target_prices":           "Show target prices (cost basis times target multiplier)",
	"theme":                        "UI theme: light, dark or system",
}

// SupportedCurrencies lists the display currencies in menu order
var SupportedCurrencies = []string{"USD", "SGD", "MYR", "CNY", "JPY", "KRW", "TWD", "EUR"}

// symbolOverrides replaces go-money graphemes that are ambiguous in a
// multi-currency menu
var symbolOverrides = map[string]string{
	"SGD": "S$",
	"CNY": "¥",
}

// IsSupportedCurrency reports whether code is a known ISO currency offered for display
func IsSupportedCurrency(code string) bool {
	code = strings.ToUpper(code)
	if money.GetCurrency(code) == nil {
		return false
	}
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// CurrencySymbol returns the display symbol for code, or the code itself when unknown
func CurrencySymbol(code string) string {
	code = strings.ToUpper(code)
	if symbol, ok := symbolOverrides[code]; ok {
		return symbol
	}
	if cur := money.GetCurrency(code); cur != nil && cur.Grapheme != "" {
		return cur.Grapheme
	}
	return code
}

// CurrencyOption is one entry of the currency menu
type CurrencyOption struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// CurrencyOptions returns the supported currencies with their symbols
func CurrencyOptions() []CurrencyOption {
	options := make([]CurrencyOption, 0, len(SupportedCurrencies))
	for _, code := range SupportedCurrencies {
		options = append(options, CurrencyOption{Code: code, Symbol: CurrencySymbol(code)})
	}
	return options
}

func isValidTheme(theme string) bool {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
