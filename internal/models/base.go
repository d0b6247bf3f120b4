package models

import "time"

// BaseModel carries the integer primary key and timestamps shared by most
// rows. Integer keys match the external surfaces (telegram payloads, admin
// URLs) that address everything by numeric id.
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
