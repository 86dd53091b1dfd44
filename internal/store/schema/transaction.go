package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents the transactions fact table - one row per committed
// trade, keyed to the dimension tables by surrogate id.
type Transaction struct {
	// TransactionID is the internal database primary key
	TransactionID int64 `gorm:"column:transaction_id;primaryKey;autoIncrement"`
	// TransactionHash is the on-chain transaction hash; reruns over the same
	// window dedupe on it
	TransactionHash string `gorm:"column:transaction_hash;not null;uniqueIndex;type:text"`
	// Time is the UTC instant of the trade
	Time time.Time `gorm:"column:time;not null;index"`
	// PriceUSD is the normalized USD amount
	PriceUSD decimal.Decimal `gorm:"column:price_usd;not null;type:numeric(20,2)"`
	// TokenID is the collection token number the trade concerns
	TokenID int64 `gorm:"column:token_id;not null;index"`
	// MarketID references markets.id
	MarketID int64 `gorm:"column:market_id;not null"`
	// ActionID references actions.id
	ActionID int64 `gorm:"column:action_id;not null"`
	// BuyerID references addresses.id
	BuyerID int64 `gorm:"column:buyer_id;not null;index"`
	// SellerID references addresses.id; nil when no earlier sale of the token
	// is on record
	SellerID *int64 `gorm:"column:seller_id;index"`

	// Associations
	Market *Market  `gorm:"foreignKey:MarketID"`
	Action *Action  `gorm:"foreignKey:ActionID"`
	Buyer  *Address `gorm:"foreignKey:BuyerID"`
	Seller *Address `gorm:"foreignKey:SellerID"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
