package schema

// Market represents the markets dimension table - one row per marketplace name
type Market struct {
	// ID is the surrogate key assigned by the dimension resolver
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// Name is the marketplace display name as scraped (e.g., "OpenSea")
	Name string `gorm:"column:name;not null;uniqueIndex;type:text"`
}

// TableName specifies the table name for the Market model
func (Market) TableName() string {
	return "markets"
}
