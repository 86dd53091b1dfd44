package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the warehouse schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Market{},
		&schema.Action{},
		&schema.Address{},
		&schema.Transaction{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to defaults:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays
// under PostgreSQL's 65535-parameter limit for the extended protocol, keeping
// headroom for ON CONFLICT clauses and driver bookkeeping.
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// GetDimensionMappings loads the full value-to-key lookup for every dimension
func (s *pgStore) GetDimensionMappings(ctx context.Context) (*Mappings, error) {
	m := &Mappings{
		Markets: make(map[string]int64),
		Actions: make(map[string]int64),
		Buyers:  make(map[string]int64),
	}

	var markets []schema.Market
	if err := s.db.WithContext(ctx).Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to load markets: %w", err)
	}
	for _, row := range markets {
		m.Markets[row.Name] = row.ID
	}

	var actions []schema.Action
	if err := s.db.WithContext(ctx).Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}
	for _, row := range actions {
		m.Actions[row.Name] = row.ID
	}

	var addresses []schema.Address
	if err := s.db.WithContext(ctx).Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to load addresses: %w", err)
	}
	for _, row := range addresses {
		m.Buyers[row.Address] = row.ID
	}

	return m, nil
}

// InsertMarkets inserts new market dimension rows, ignoring duplicates
func (s *pgStore) InsertMarkets(ctx context.Context, markets []schema.Market) error {
	if len(markets) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&markets).Error
	if err != nil {
		return fmt.Errorf("failed to insert markets: %w", err)
	}
	return nil
}

// InsertActions inserts new action dimension rows, ignoring duplicates
func (s *pgStore) InsertActions(ctx context.Context, actions []schema.Action) error {
	if len(actions) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&actions).Error
	if err != nil {
		return fmt.Errorf("failed to insert actions: %w", err)
	}
	return nil
}

// InsertAddresses inserts new address dimension rows, ignoring duplicates
func (s *pgStore) InsertAddresses(ctx context.Context, addresses []schema.Address) error {
	if len(addresses) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		CreateInBatches(&addresses, calculateSafeBatchSize(len(addresses), 2)).Error
	if err != nil {
		return fmt.Errorf("failed to insert addresses: %w", err)
	}
	return nil
}

// InsertTransactions inserts fact rows, skipping hashes already committed
func (s *pgStore) InsertTransactions(ctx context.Context, txs []schema.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_hash"}},
			DoNothing: true,
		}).
		CreateInBatches(&txs, calculateSafeBatchSize(len(txs), 8)).Error
	if err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}
	return nil
}

// LatestTransactionTime returns the newest committed trade time, or zero time
// when the fact table is empty
func (s *pgStore) LatestTransactionTime(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("MAX(time)").
		Row().Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest transaction time: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time.UTC(), nil
}

// TokenSaleHistory returns every committed sale of the given tokens in
// (token, time) order
func (s *pgStore) TokenSaleHistory(ctx context.Context, tokenIDs []int64) ([]domain.TokenSale, error) {
	if len(tokenIDs) == 0 {
		return []domain.TokenSale{}, nil
	}

	var sales []domain.TokenSale
	err := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("token_id, time, buyer_id").
		Where("token_id IN ?", tokenIDs).
		Order("token_id, time").
		Scan(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get token sale history: %w", err)
	}
	return sales, nil
}

// TradeStatsSince aggregates sales at or after since; zero since means all time
func (s *pgStore) TradeStatsSince(ctx context.Context, since time.Time) (*TradeStats, error) {
	q := s.db.WithContext(ctx).Model(&schema.Transaction{})
	if !since.IsZero() {
		q = q.Where("time >= ?", since)
	}

	var stats TradeStats
	err := q.Select(
		"COUNT(*) AS sale_count, " +
			"COALESCE(SUM(price_usd), 0) AS total_volume, " +
			"COALESCE(ROUND(AVG(price_usd), 2), 0) AS avg_price, " +
			"COALESCE(MIN(price_usd), 0) AS min_price, " +
			"COALESCE(MAX(price_usd), 0) AS max_price").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trade stats: %w", err)
	}
	return &stats, nil
}

// TopBuyers ranks buyer addresses by total USD volume within the window
func (s *pgStore) TopBuyers(ctx context.Context, since time.Time, limit int) ([]AddressActivity, error) {
	return s.topAddresses(ctx, "buyer_id", since, limit)
}

// TopSellers ranks seller addresses by total USD volume within the window
func (s *pgStore) TopSellers(ctx context.Context, since time.Time, limit int) ([]AddressActivity, error) {
	return s.topAddresses(ctx, "seller_id", since, limit)
}

func (s *pgStore) topAddresses(ctx context.Context, keyColumn string, since time.Time, limit int) ([]AddressActivity, error) {
	q := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("addresses.address, COUNT(*) AS trade_count, COALESCE(SUM(transactions.price_usd), 0) AS total_volume").
		Joins(fmt.Sprintf("JOIN addresses ON addresses.id = transactions.%s", keyColumn)).
		Group("addresses.address").
		Order("total_volume DESC, addresses.address").
		Limit(limit)
	if !since.IsZero() {
		q = q.Where("transactions.time >= ?", since)
	}

	var rows []AddressActivity
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to rank addresses by %s: %w", keyColumn, err)
	}
	return rows, nil
}

// MarketplaceComparison aggregates sales per marketplace within the window
func (s *pgStore) MarketplaceComparison(ctx context.Context, since time.Time) ([]MarketStats, error) {
	q := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("markets.name AS market, COUNT(*) AS sale_count, " +
			"COALESCE(SUM(transactions.price_usd), 0) AS total_volume, " +
			"COALESCE(ROUND(AVG(transactions.price_usd), 2), 0) AS avg_price").
		Joins("JOIN markets ON markets.id = transactions.market_id").
		Group("markets.name").
		Order("sale_count DESC, markets.name")
	if !since.IsZero() {
		q = q.Where("transactions.time >= ?", since)
	}

	var rows []MarketStats
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to compare marketplaces: %w", err)
	}
	return rows, nil
}

// TokenTransactions returns the trade history of one token at or after since,
// newest first; zero since means all time
func (s *pgStore) TokenTransactions(ctx context.Context, tokenID int64, since time.Time) ([]TokenTransaction, error) {
	q := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("transactions.transaction_hash, transactions.time, transactions.price_usd, "+
			"markets.name AS market, actions.name AS action, "+
			"buyers.address AS buyer, sellers.address AS seller").
		Joins("JOIN markets ON markets.id = transactions.market_id").
		Joins("JOIN actions ON actions.id = transactions.action_id").
		Joins("JOIN addresses buyers ON buyers.id = transactions.buyer_id").
		Joins("LEFT JOIN addresses sellers ON sellers.id = transactions.seller_id").
		Where("transactions.token_id = ?", tokenID).
		Order("transactions.time DESC")
	if !since.IsZero() {
		q = q.Where("transactions.time >= ?", since)
	}
	var rows []TokenTransaction
	err := q.Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get token transactions: %w", err)
	}
	return rows, nil
}

// AllSales returns every committed sale in resale-analysis shape
func (s *pgStore) AllSales(ctx context.Context) ([]SaleRow, error) {
	var rows []SaleRow
	err := s.db.WithContext(ctx).
		Model(&schema.Transaction{}).
		Select("token_id, time, price_usd, seller_id").
		Order("token_id, time").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return rows, nil
}

// TokensOwned returns the tokens whose most recent buyer is the address
func (s *pgStore) TokensOwned(ctx context.Context, address string) ([]TokenHolding, error) {
	var rows []TokenHolding
	err := s.db.WithContext(ctx).Raw(`
		SELECT latest.token_id, latest.time AS last_sold_at, latest.price_usd
		FROM (
			SELECT DISTINCT ON (token_id) token_id, time, price_usd, buyer_id
			FROM transactions
			ORDER BY token_id, time DESC, transaction_id DESC
		) latest
		JOIN addresses ON addresses.id = latest.buyer_id
		WHERE addresses.address = ?
		ORDER BY latest.token_id`, address).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens owned: %w", err)
	}
	return rows, nil
}

// ResolveAddress returns the address string for a surrogate key
func (s *pgStore) ResolveAddress(ctx context.Context, id int64) (string, error) {
	var row schema.Address
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve address: %w", err)
	}
	return row.Address, nil
}
