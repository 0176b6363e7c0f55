package models

import "time"

// SaleSummary is one aggregated sales line: a product volume for a station shift on a day.
type SaleSummary struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	IDType        string    `gorm:"type:varchar(20);index"` // COCO or DODO.
	StationID     string    `gorm:"type:varchar(11);index"` // Station business identifier.
	Station       string    `gorm:"type:varchar(500)"`      // Station name.
	AMName        string    `gorm:"type:varchar(255)"`      // Area manager name.
	ProvinceName  string    `gorm:"type:varchar(255)"`      // Province name.
	DateCompleted time.Time `gorm:"type:date;index"`        // Business date.
	MatID         string    `gorm:"type:varchar(20);index"` // Material id.
	Payment       string    `gorm:"type:varchar(50)"`       // Payment method.
	ShiftID       *int      // Shift number.
	TotalVolume   float64   // Litres sold.
	TotalAmount   float64   // Amount collected.
}

// TableName returns the sales summary table.
func (SaleSummary) TableName() string { return "sales_summaries" }
