package format

import (
	"net/url"

	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/schema"
)

const (
	// SolanaPlatform is the platforms key holding the Solana mint address.
	SolanaPlatform = "solana"

	explorerTokenURL = "https://solscan.io/token/"
)

// ExplorerLink maps a token address to its explorer page. A nil address has no link.
func ExplorerLink(tokenAddress *string) *string {
	if tokenAddress == nil || *tokenAddress == "" {
		return nil
	}
	link := explorerTokenURL + url.PathEscape(*tokenAddress)
	return &link
}

// FromDetail builds a summary from a coin detail, reading market figures for
// currency and the token address from platformKey.
func FromDetail(detail *schema.RawCoinDetail, currency, platformKey string) (*models.CoinSummary, error) {
	md := detail.MarketData
	token := detail.PlatformAddress(platformKey)

	summary := &models.CoinSummary{
		ID:            detail.ID,
		Symbol:        detail.Symbol,
		Icon:          detail.Image.Large,
		Price:         deref(md.CurrentPrice[currency]),
		PriceChange1d: copyFloat(md.PriceChangePercentage24h),
		MarketCap:     deref(md.MarketCap[currency]),
		Volume24h:     deref(md.TotalVolume[currency]),
		TokenAddress:  token,
		ExplorerLink:  ExplorerLink(token),
	}

	if err := schema.Struct(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// FromMarketEntry builds a summary from a flattened market entry. The entry
// carries no platform data, so the token address is supplied by the caller.
func FromMarketEntry(entry *schema.RawMarketEntry, tokenAddress *string) (*models.CoinSummary, error) {
	var token *string
	if tokenAddress != nil && *tokenAddress != "" {
		addr := *tokenAddress
		token = &addr
	}

	summary := &models.CoinSummary{
		ID:            entry.ID,
		Symbol:        entry.Symbol,
		Icon:          entry.Image,
		Price:         deref(entry.CurrentPrice),
		PriceChange1d: copyFloat(entry.PriceChangePercentage24h),
		MarketCap:     deref(entry.MarketCap),
		Volume24h:     deref(entry.TotalVolume),
		TokenAddress:  token,
		ExplorerLink:  ExplorerLink(token),
	}

	if err := schema.Struct(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
