package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/store/schema"
)

// Mappings holds the dimension value-to-key lookups loaded from the warehouse.
type Mappings struct {
	Markets map[string]int64
	Actions map[string]int64
	Buyers  map[string]int64
}

// TradeStats aggregates sale volume over a window.
type TradeStats struct {
	SaleCount   int64
	TotalVolume decimal.Decimal
	AvgPrice    decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
}

// AddressActivity is one buyer or seller ranked by traded volume.
type AddressActivity struct {
	Address     string
	TradeCount  int64
	TotalVolume decimal.Decimal
}

// MarketStats aggregates sale volume per marketplace.
type MarketStats struct {
	Market      string
	SaleCount   int64
	TotalVolume decimal.Decimal
	AvgPrice    decimal.Decimal
}

// TokenTransaction is one committed trade of a token with dimension values
// joined back in.
type TokenTransaction struct {
	TransactionHash string
	Time            time.Time
	PriceUSD        decimal.Decimal
	Market          string
	Action          string
	Buyer           string
	Seller          *string
}

// TokenHolding is a token together with the address that bought it last.
type TokenHolding struct {
	TokenID    int64
	LastSoldAt time.Time
	PriceUSD   decimal.Decimal
}

// Writer defines the warehouse operations the pipeline performs.
type Writer interface {
	// GetDimensionMappings loads the full value-to-key lookup for every dimension
	GetDimensionMappings(ctx context.Context) (*Mappings, error)
	// InsertMarkets inserts new market dimension rows, ignoring duplicates
	InsertMarkets(ctx context.Context, markets []schema.Market) error
	// InsertActions inserts new action dimension rows, ignoring duplicates
	InsertActions(ctx context.Context, actions []schema.Action) error
	// InsertAddresses inserts new address dimension rows, ignoring duplicates
	InsertAddresses(ctx context.Context, addresses []schema.Address) error
	// InsertTransactions inserts fact rows, skipping hashes already committed
	InsertTransactions(ctx context.Context, txs []schema.Transaction) error
	// LatestTransactionTime returns the newest committed trade time, or zero
	// time when the fact table is empty
	LatestTransactionTime(ctx context.Context) (time.Time, error)
	// TokenSaleHistory returns every committed sale of the given tokens in
	// (token, time) order
	TokenSaleHistory(ctx context.Context, tokenIDs []int64) ([]domain.TokenSale, error)
}

// Analytics defines the read-side queries the API serves.
type Analytics interface {
	// TradeStatsSince aggregates sales at or after since; zero since means all time
	TradeStatsSince(ctx context.Context, since time.Time) (*TradeStats, error)
	// TopBuyers ranks buyer addresses by total USD volume within the window
	TopBuyers(ctx context.Context, since time.Time, limit int) ([]AddressActivity, error)
	// TopSellers ranks seller addresses by total USD volume within the window,
	// counting only trades with an inferred seller
	TopSellers(ctx context.Context, since time.Time, limit int) ([]AddressActivity, error)
	// MarketplaceComparison aggregates sales per marketplace within the window
	MarketplaceComparison(ctx context.Context, since time.Time) ([]MarketStats, error)
	// TokenTransactions returns the trade history of one token at or after
	// since, newest first; zero since means all time
	TokenTransactions(ctx context.Context, tokenID int64, since time.Time) ([]TokenTransaction, error)
	// AllSales returns every committed sale in the shape the resale analyzer
	// consumes, in (token, time) order
	AllSales(ctx context.Context) ([]SaleRow, error)
	// TokensOwned returns the tokens whose most recent buyer is the address
	TokensOwned(ctx context.Context, address string) ([]TokenHolding, error)
	// ResolveAddress returns the address string for a surrogate key
	ResolveAddress(ctx context.Context, id int64) (string, error)
}

// SaleRow is one committed sale in resale-analysis shape.
type SaleRow struct {
	TokenID  int64
	Time     time.Time
	PriceUSD decimal.Decimal
	SellerID *int64
}

// Store combines the pipeline and analytics surfaces.
type Store interface {
	Writer
	Analytics
}
