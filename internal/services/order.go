package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"gorm.io/gorm"
)

// ErrInactiveProduct aborts a commit whose cart references a product that
// no longer exists or has been deactivated since selection.
var ErrInactiveProduct = errors.New("product is invalid or inactive")

type OrderLine struct {
	ProductID uint
	Quantity  int
}

type OrderService struct {
	DB *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{DB: db}
}

// CreateFromCart commits a finalized cart as one Order with its items,
// atomically. Every line is revalidated against the current catalog and
// the total is recomputed from current prices; any invalid line aborts
// the whole commit with no partial order left behind.
func (s *OrderService) CreateFromCart(userID uint, lines []OrderLine, address, comment string) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, errors.New("cart is empty")
	}

	productIDs := make([]uint, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}

	var order *models.Order
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return err
		}

		byID := make(map[uint]models.Product, len(products))
		for _, product := range products {
			byID[product.ID] = product
		}

		var total float64
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok || !product.Active {
				return fmt.Errorf("%w: %d", ErrInactiveProduct, line.ProductID)
			}
			total += product.Price * float64(line.Quantity)
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			})
		}

		created := models.Order{
			UserID: userID,
			Status: models.OrderStatusPending,
			Total:  total,
			Notes:  buildOrderNotes(address, comment),
			Items:  items,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		order = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func buildOrderNotes(address, comment string) string {
	parts := []string{"Dirección de entrega: " + address}
	if comment != "" {
		parts = append(parts, "Comentario courier: "+comment)
	}
	return strings.Join(parts, "\n")
}

// HistoryForUser returns the user's most recent orders with their items.
func (s *OrderService) HistoryForUser(userID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
