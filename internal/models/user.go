package models

type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleCourier  RoleName = "courier"
	RoleCustomer RoleName = "customer"
)

// Fixed role IDs matching the seeded rows.
const (
	RoleIDAdmin    uint = 1
	RoleIDCourier  uint = 2
	RoleIDCustomer uint = 3
)

type Role struct {
	BaseModel
	Name        RoleName `json:"name" gorm:"type:varchar(20);uniqueIndex;not null"`
	Description string   `json:"description,omitempty" gorm:"type:text"`
}

// User is one actor. Chat customers carry a telegram id and no
// credentials; administrative users carry a username and password hash.
// A single row may carry both.
type User struct {
	BaseModel
	TelegramID   *int64  `json:"telegram_id" gorm:"uniqueIndex"`
	Username     *string `json:"username,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	PasswordHash *string `json:"-" gorm:"type:text;column:password"`
	FirstName    string  `json:"first_name,omitempty" gorm:"type:varchar(100)"`
	Phone        string  `json:"phone,omitempty" gorm:"type:varchar(30)"`
	Address      string  `json:"address,omitempty" gorm:"type:text"`
	Approved     bool    `json:"approved" gorm:"not null;default:false"`
	RoleID       uint    `json:"role_id" gorm:"not null;index"`
	Role         Role    `json:"role" gorm:"foreignKey:RoleID"`
}

// CanOrder reports whether the actor may use the chat ordering flow.
func (u *User) CanOrder() bool {
	return u.TelegramID != nil && u.Approved && u.Role.Name == RoleCustomer
}

// CanAdminister reports whether the actor may use the administrative surface.
func (u *User) CanAdminister() bool {
	return u.Approved && (u.Role.Name == RoleAdmin || u.Role.Name == RoleCourier)
}
