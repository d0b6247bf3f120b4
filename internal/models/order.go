package models

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusImHere    OrderStatus = "im_here"
	OrderStatusDelivered OrderStatus = "delivered"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusInTransit,
		OrderStatusImHere, OrderStatusDelivered:
		return true
	}
	return false
}

type Order struct {
	BaseModel
	UserID    uint        `json:"user_id" gorm:"not null;index"`
	User      User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Total     float64     `json:"total" gorm:"not null;default:0"`
	Completed bool        `json:"completed" gorm:"not null;default:false"`
	Notes     string      `json:"notes,omitempty" gorm:"type:text"`
	Items     []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem records the quantity and the unit price at commit time; later
// catalog price changes never touch existing orders.
type OrderItem struct {
	ID        uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   uint    `json:"order_id" gorm:"not null;index"`
	ProductID uint    `json:"product_id" gorm:"not null;index"`
	Product   Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	Price     float64 `json:"price" gorm:"not null"`
}
