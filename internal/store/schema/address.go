package schema

// Address represents the addresses dimension table - one row per wallet address
// seen as a buyer. Sellers reference the same table through transactions.seller_id.
type Address struct {
	// ID is the surrogate key assigned by the dimension resolver
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// Address is the 0x-prefixed wallet address
	Address string `gorm:"column:address;not null;uniqueIndex;type:text"`
}

// TableName specifies the table name for the Address model
func (Address) TableName() string {
	return "addresses"
}
