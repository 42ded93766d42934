package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingDefaults(t *testing.T) {
	assert.Equal(t, "USD", SettingDefaults.DisplayCurrency)
	assert.Equal(t, 60, SettingDefaults.RefreshIntervalSeconds)
	assert.True(t, SettingDefaults.AutoRefresh)
	assert.False(t, SettingDefaults.HideValues)
	assert.False(t, SettingDefaults.ShowPricesInBaseCurrency)
	assert.False(t, SettingDefaults.ShowTargetPrices)
	assert.Equal(t, ThemeSystem, SettingDefaults.Theme)
}

func TestSettingDescriptions_CoverEveryField(t *testing.T) {
	for _, key := range diff(SettingDefaults, domainOpposite()) {
		assert.NotEmpty(t, SettingDescriptions[key], "missing description for %s", key)
	}
}

func TestIsSupportedCurrency(t *testing.T) {
	for _, code := range SupportedCurrencies {
		assert.True(t, IsSupportedCurrency(code), code)
	}
	assert.True(t, IsSupportedCurrency("sgd"))
	assert.False(t, IsSupportedCurrency("GBP"), "valid ISO code but not offered")
	assert.False(t, IsSupportedCurrency("XYZ"))
	assert.False(t, IsSupportedCurrency(""))
}

func TestCurrencySymbol(t *testing.T) {
	assert.Equal(t, "$", CurrencySymbol("USD"))
	assert.Equal(t, "S$", CurrencySymbol("SGD"))
	assert.Equal(t, "RM", CurrencySymbol("MYR"))
	assert.Equal(t, "¥", CurrencySymbol("CNY"))
	assert.Equal(t, "€", CurrencySymbol("eur"))
	assert.Equal(t, "XYZ", CurrencySymbol("XYZ"))
}

func TestCurrencyOptions(t *testing.T) {
	options := CurrencyOptions()
	assert.Len(t, options, len(SupportedCurrencies))
	assert.Equal(t, CurrencyOption{Code: "USD", Symbol: "$"}, options[0])
}
