package models

type Product struct {
	BaseModel
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Price       float64        `json:"price" gorm:"not null"`
	Active      bool           `json:"active" gorm:"not null;default:true"`
	Images      []ProductImage `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

type ProductImage struct {
	ID         uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID  uint   `json:"product_id" gorm:"not null;index"`
	ImageURL   string `json:"image_url" gorm:"type:text;not null"`
	OrderIndex int    `json:"order_index" gorm:"not null;default:1"`
}
