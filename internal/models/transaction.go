package models

import "time"

// Transaction is an imported bank or card statement row. The engine
// reads transactions but never writes them.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TxHash      string    `gorm:"size:160;not null;uniqueIndex"` // Dedupe hash over the imported row.
	Date        time.Time `gorm:"type:date;not null;index"`      // Transaction date.
	Description string    `gorm:"size:255;not null"`             // Statement description.
	Amount      float64   `gorm:"not null"`                      // Signed amount; negative is an outflow.

	Account  string `gorm:"size:120"`       // Optional source account label.
	Category string `gorm:"size:120;index"` // Optional spending category.
	Merchant string `gorm:"size:120"`       // Optional merchant label.
	Currency string `gorm:"size:8"`         // Optional ISO currency code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (Transaction) TableName() string {
	return "transactions"
}
