package services

import (
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
)

func createProduct(t *testing.T, db *gorm.DB, name string, price float64, active bool) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, Price: price, Active: active}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("failed creating product: %v", err)
	}
	return product
}

func TestCreateFromCartRecomputesTotal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db)
	user := createUser(t, db, models.RoleIDCustomer, true)
	tea := createProduct(t, db, "Té", 10, true)
	coffee := createProduct(t, db, "Café", 7.5, true)

	order, err := svc.CreateFromCart(user.ID, []OrderLine{
		{ProductID: tea.ID, Quantity: 2},
		{ProductID: coffee.ID, Quantity: 1},
	}, "Calle 1 #23", "timbre roto")
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if order.Total != 27.5 {
		t.Fatalf("total = %v, want 27.5", order.Total)
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if !strings.Contains(order.Notes, "Dirección de entrega: Calle 1 #23") ||
		!strings.Contains(order.Notes, "Comentario courier: timbre roto") {
		t.Fatalf("notes missing address or comment: %q", order.Notes)
	}

	// Unit prices are frozen at commit time.
	if err := db.Model(tea).Update("price", 99).Error; err != nil {
		t.Fatalf("failed repricing product: %v", err)
	}
	var item models.OrderItem
	if err := db.First(&item, "order_id = ? AND product_id = ?", order.ID, tea.ID).Error; err != nil {
		t.Fatalf("failed loading item: %v", err)
	}
	if item.Price != 10 {
		t.Fatalf("item price = %v, want the price at commit", item.Price)
	}
}

func TestCreateFromCartAbortsOnInactiveProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db)
	user := createUser(t, db, models.RoleIDCustomer, true)
	tea := createProduct(t, db, "Té", 10, true)
	retired := createProduct(t, db, "Descontinuado", 5, false)

	_, err := svc.CreateFromCart(user.ID, []OrderLine{
		{ProductID: tea.ID, Quantity: 1},
		{ProductID: retired.ID, Quantity: 1},
	}, "Calle 1 #23", "")
	if !errors.Is(err, ErrInactiveProduct) {
		t.Fatalf("want ErrInactiveProduct, got %v", err)
	}

	// All-or-nothing: no partial rows.
	var orders, items int64
	db.Model(&models.Order{}).Count(&orders)
	db.Model(&models.OrderItem{}).Count(&items)
	if orders != 0 || items != 0 {
		t.Fatalf("expected empty tables after abort, got %d orders %d items", orders, items)
	}
}

func TestCreateFromCartRejectsMissingProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db)
	user := createUser(t, db, models.RoleIDCustomer, true)

	_, err := svc.CreateFromCart(user.ID, []OrderLine{{ProductID: 9999, Quantity: 1}}, "Calle 1 #23", "")
	if !errors.Is(err, ErrInactiveProduct) {
		t.Fatalf("want ErrInactiveProduct, got %v", err)
	}
}

func TestCreateFromCartRejectsEmpty(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db)
	user := createUser(t, db, models.RoleIDCustomer, true)

	if _, err := svc.CreateFromCart(user.ID, nil, "Calle 1 #23", ""); err == nil {
		t.Fatal("empty cart must not commit")
	}
}

func TestHistoryForUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewOrderService(db)
	user := createUser(t, db, models.RoleIDCustomer, true)
	other := createUser(t, db, models.RoleIDCustomer, true)
	tea := createProduct(t, db, "Té", 10, true)

	for range [3]struct{}{} {
		if _, err := svc.CreateFromCart(user.ID, []OrderLine{{ProductID: tea.ID, Quantity: 1}}, "Calle 1 #23", ""); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}
	if _, err := svc.CreateFromCart(other.ID, []OrderLine{{ProductID: tea.ID, Quantity: 1}}, "Calle 9 #87", ""); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	orders, err := svc.HistoryForUser(user.ID, 2)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected limit of 2 orders, got %d", len(orders))
	}
	for _, order := range orders {
		if order.UserID != user.ID {
			t.Fatalf("history leaked order for user %d", order.UserID)
		}
		if len(order.Items) != 1 || order.Items[0].Product.Name != "Té" {
			t.Fatalf("expected items with products preloaded, got %+v", order.Items)
		}
	}
}
