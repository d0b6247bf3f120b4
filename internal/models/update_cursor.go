package models

// UpdateCursor persists the last processed chat update identifier so a
// restart does not replay updates the previous process already handled.
// There is exactly one row.
type UpdateCursor struct {
	ID           uint  `json:"id" gorm:"primaryKey"`
	LastUpdateID int64 `json:"last_update_id" gorm:"not null;default:0"`
}
