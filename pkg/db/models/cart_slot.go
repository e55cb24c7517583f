package models

import "time"

// CartSlot holds the serialized cart of one named slot. Revision increases
// on every write so readers can detect changes by polling.
type CartSlot struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	Revision  int64     `gorm:"column:revision;not null;default:0"`
	Writer    string    `gorm:"column:writer;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSlot) TableName() string {
	return "cart_slots"
}
