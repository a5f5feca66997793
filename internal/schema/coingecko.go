package schema

import (
	"fmt"

	"github.com/Tonic56/coin-watchlist/lib/errs"
)

// RawMarketEntry is one element of the /coins/markets response.
type RawMarketEntry struct {
	ID                       string   `json:"id" validate:"required"`
	Symbol                   string   `json:"symbol" validate:"required"`
	Name                     string   `json:"name" validate:"required"`
	Image                    string   `json:"image" validate:"required,url"`
	CurrentPrice             *float64 `json:"current_price" validate:"required,gte=0"`
	MarketCap                *float64 `json:"market_cap" validate:"required,gte=0"`
	TotalVolume              *float64 `json:"total_volume" validate:"required,gte=0"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

type CoinImage struct {
	Large string `json:"large" validate:"required,url"`
	Small string `json:"small" validate:"required,url"`
	Thumb string `json:"thumb" validate:"required,url"`
}

// DetailMarketData holds the currency keyed market figures of a coin detail.
type DetailMarketData struct {
	CurrentPrice             map[string]*float64 `json:"current_price" validate:"required,dive,required,gte=0"`
	PriceChangePercentage24h *float64            `json:"price_change_percentage_24h"`
	MarketCap                map[string]*float64 `json:"market_cap" validate:"required,dive,required,gte=0"`
	TotalVolume              map[string]*float64 `json:"total_volume" validate:"required,dive,required,gte=0"`
}

// RawCoinDetail is the /coins/{id} response.
type RawCoinDetail struct {
	ID         string             `json:"id" validate:"required"`
	Symbol     string             `json:"symbol" validate:"required"`
	Name       string             `json:"name" validate:"required"`
	Image      CoinImage          `json:"image"`
	Platforms  map[string]*string `json:"platforms" validate:"required"`
	MarketData DetailMarketData   `json:"market_data"`
}

// PlatformAddress returns the contract address on the given platform, or nil
// when the coin is not deployed there.
func (d *RawCoinDetail) PlatformAddress(platform string) *string {
	addr, ok := d.Platforms[platform]
	if !ok || addr == nil || *addr == "" {
		return nil
	}
	out := *addr
	return &out
}

// RawHistoricalRange is the /coins/{id}/market_chart/range response. Every
// element is a [timestamp, value] pair of non-null numbers.
type RawHistoricalRange struct {
	Prices       [][]*float64 `json:"prices" validate:"required,dive,len=2,dive,required"`
	MarketCaps   [][]*float64 `json:"market_caps" validate:"required,dive,len=2,dive,required"`
	TotalVolumes [][]*float64 `json:"total_volumes" validate:"required,dive,len=2,dive,required"`
}

// ParseMarketList validates a whole /coins/markets page. Any invalid entry
// fails the page.
func ParseMarketList(body []byte) ([]RawMarketEntry, error) {
	var entries []RawMarketEntry
	if err := decode(body, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, &errs.ValidationError{Reason: "expected an array"}
	}

	for i := range entries {
		if err := Struct(&entries[i]); err != nil {
			return nil, prefixed(fmt.Sprintf("[%d]", i), err)
		}
	}

	return entries, nil
}

func ParseMarketEntry(body []byte) (*RawMarketEntry, error) {
	var entry RawMarketEntry
	if err := decode(body, &entry); err != nil {
		return nil, err
	}
	if err := Struct(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ParseCoinDetail validates a coin detail and requires market figures for
// currency.
func ParseCoinDetail(body []byte, currency string) (*RawCoinDetail, error) {
	var detail RawCoinDetail
	if err := decode(body, &detail); err != nil {
		return nil, err
	}
	if err := Struct(&detail); err != nil {
		return nil, err
	}

	figures := []struct {
		field  string
		values map[string]*float64
	}{
		{"market_data.current_price", detail.MarketData.CurrentPrice},
		{"market_data.market_cap", detail.MarketData.MarketCap},
		{"market_data.total_volume", detail.MarketData.TotalVolume},
	}
	for _, f := range figures {
		if _, ok := f.values[currency]; !ok {
			return nil, &errs.ValidationError{Field: f.field + "." + currency, Reason: "required"}
		}
	}

	return &detail, nil
}

func ParseHistoricalRange(body []byte) (*RawHistoricalRange, error) {
	var series RawHistoricalRange
	if err := decode(body, &series); err != nil {
		return nil, err
	}
	if err := Struct(&series); err != nil {
		return nil, err
	}
	return &series, nil
}

func prefixed(prefix string, err error) error {
	vErr, ok := err.(*errs.ValidationError)
	if !ok {
		return err
	}
	field := prefix
	if vErr.Field != "" {
		field = prefix + "." + vErr.Field
	}
	return &errs.ValidationError{Field: field, Reason: vErr.Reason}
}
