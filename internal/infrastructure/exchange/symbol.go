package exchange

import (
	"strings"
)

// QuoteConverter maps between bare coins and quote-suffixed spot symbols.
// 例: BTC <-> BTCUSDT
type QuoteConverter struct {
	quote string
}

// NewQuoteConverter 创建计价币种转换器；quote 为空时不做转换也不过滤
func NewQuoteConverter(quote string) *QuoteConverter {
	return &QuoteConverter{quote: strings.ToUpper(strings.TrimSpace(quote))}
}

func (c *QuoteConverter) Quote() string {
	return c.quote
}

// Coin2Symbol 将币种转换为交易对
// 例: BTC -> BTCUSDT, BTCUSDT -> BTCUSDT
func (c *QuoteConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" || c.quote == "" {
		return coin
	}
	if strings.HasSuffix(coin, c.quote) {
		return coin
	}
	return coin + c.quote
}

// Matches reports whether symbol is quoted in the configured currency.
func (c *QuoteConverter) Matches(symbol string) bool {
	if c.quote == "" {
		return true
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return len(sym) > len(c.quote) && strings.HasSuffix(sym, c.quote)
}

// SelectSymbols normalises, filters by quote and truncates to limit
// (limit <= 0 keeps all). First occurrence wins; order is preserved.
func SelectSymbols(in []string, conv *QuoteConverter, limit int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if conv != nil && !conv.Matches(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ExpandCoins turns configured entries that are bare coins into symbols.
func ExpandCoins(in []string, conv *QuoteConverter) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, conv.Coin2Symbol(s))
	}
	return out
}
