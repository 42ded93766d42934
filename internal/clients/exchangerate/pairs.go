package exchangerate

import (
	"time"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// fallbackRates are used when the provider is unreachable. Keyed FROM:TO.
var fallbackRates = map[string]float64{
	"USD:SGD": 1.35,
	"USD:MYR": 4.48,
}

// pairSymbol maps a currency pair to a chart symbol. The provider quotes
// USD->X as "X=X" and has no direct X->USD quote, so that direction reuses
// "X=X" and reports invert=true.
func pairSymbol(from, to string) (symbol string, invert bool) {
	switch {
	case from == domain.BaseCurrency:
		return to + "=X", false
	case to == domain.BaseCurrency:
		return from + "=X", true
	default:
		return from + to + "=X", false
	}
}

func fallbackRate(from, to string, now time.Time) (domain.ExchangeRate, bool) {
	rate, ok := fallbackRates[from+":"+to]
	if !ok {
		inverse, found := fallbackRates[to+":"+from]
		if !found {
			return domain.ExchangeRate{}, false
		}
		rate = 1 / inverse
	}

	return domain.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      rate,
		Timestamp: now,
		Source:    domain.RateSourceFallback,
	}, true
}
