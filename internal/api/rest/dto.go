package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/reneepyh/ape-index/internal/store"
)

// tradeStatsDTO is the time-based-data response body.
type tradeStatsDTO struct {
	SaleCount   int64           `json:"sale_count"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
}

// addressActivityDTO is one ranked buyer or seller.
type addressActivityDTO struct {
	Address     string          `json:"address"`
	TradeCount  int64           `json:"trade_count"`
	TotalVolume decimal.Decimal `json:"total_volume"`
}

// topTradersDTO is the top-buyers-sellers response body.
type topTradersDTO struct {
	Buyers  []addressActivityDTO `json:"buyers"`
	Sellers []addressActivityDTO `json:"sellers"`
}

// marketStatsDTO is one marketplace's aggregate.
type marketStatsDTO struct {
	Market      string          `json:"market"`
	SaleCount   int64           `json:"sale_count"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
}

// resaleSummaryDTO is one token's resale aggregate.
type resaleSummaryDTO struct {
	TokenID     int64           `json:"token_id"`
	ResaleCount int             `json:"resale_count"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	AvgProfit   decimal.Decimal `json:"avg_profit"`
}

// flipDTO is one ranked flip.
type flipDTO struct {
	TokenID int64           `json:"token_id"`
	SoldAt  time.Time       `json:"sold_at"`
	Profit  decimal.Decimal `json:"profit"`
	Seller  *string         `json:"seller,omitempty"`
}

// resaleDataDTO is the resale-data response body.
type resaleDataDTO struct {
	Summaries []resaleSummaryDTO `json:"summaries"`
	TopFlips  []flipDTO          `json:"top_flips"`
}

// tokenTransactionDTO is one trade in a token's history.
type tokenTransactionDTO struct {
	TransactionHash string          `json:"transaction_hash"`
	Time            time.Time       `json:"time"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	Market          string          `json:"market"`
	Action          string          `json:"action"`
	Buyer           string          `json:"buyer"`
	Seller          *string         `json:"seller,omitempty"`
}

// tokenHoldingDTO is one token currently held by an address.
type tokenHoldingDTO struct {
	TokenID    int64           `json:"token_id"`
	LastSoldAt time.Time       `json:"last_sold_at"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
}

func toAddressActivityDTOs(rows []store.AddressActivity) []addressActivityDTO {
	out := make([]addressActivityDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, addressActivityDTO{
			Address:     row.Address,
			TradeCount:  row.TradeCount,
			TotalVolume: row.TotalVolume,
		})
	}
	return out
}
