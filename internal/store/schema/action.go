package schema

// Action represents the actions dimension table - one row per trade action label
type Action struct {
	// ID is the surrogate key assigned by the dimension resolver
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// Name is the action label as scraped (e.g., "Sale", "Bid Won")
	Name string `gorm:"column:name;not null;uniqueIndex;type:text"`
}

// TableName specifies the table name for the Action model
func (Action) TableName() string {
	return "actions"
}
