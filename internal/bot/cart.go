package bot

import (
	"errors"
	"sort"

	"github.com/maxturbaman/GREENDELIVERY/internal/services"
)

var (
	ErrCartFinalized = errors.New("cart is finalized")
	ErrCartEmpty     = errors.New("cart is empty")
)

// Cart accumulates product quantities while the customer is picking, then
// snapshots into an ordered line list on Finalize. A finalized cart rejects
// further mutation.
type Cart struct {
	items     map[uint]int
	lines     []services.OrderLine
	finalized bool
}

func NewCart() *Cart {
	return &Cart{items: make(map[uint]int)}
}

// Increment raises a line's quantity by one, capped at max.
func (c *Cart) Increment(productID uint, max int) (int, error) {
	if c.finalized {
		return 0, ErrCartFinalized
	}
	qty := c.items[productID] + 1
	if qty > max {
		qty = max
	}
	c.items[productID] = qty
	return qty, nil
}

// Decrement lowers a line's quantity by one; hitting zero removes the line.
func (c *Cart) Decrement(productID uint) (int, error) {
	if c.finalized {
		return 0, ErrCartFinalized
	}
	qty := c.items[productID] - 1
	if qty <= 0 {
		delete(c.items, productID)
		return 0, nil
	}
	c.items[productID] = qty
	return qty, nil
}

// Remove drops the line entirely.
func (c *Cart) Remove(productID uint) error {
	if c.finalized {
		return ErrCartFinalized
	}
	delete(c.items, productID)
	return nil
}

// Quantity reports the current quantity for a product, zero if absent.
func (c *Cart) Quantity(productID uint) int {
	if c.finalized {
		for _, line := range c.lines {
			if line.ProductID == productID {
				return line.Quantity
			}
		}
		return 0
	}
	return c.items[productID]
}

func (c *Cart) Empty() bool {
	if c.finalized {
		return len(c.lines) == 0
	}
	return len(c.items) == 0
}

func (c *Cart) Finalized() bool {
	return c.finalized
}

// Finalize freezes the cart into lines ordered by product id. An empty cart
// cannot be finalized.
func (c *Cart) Finalize() error {
	if c.finalized {
		return ErrCartFinalized
	}
	if len(c.items) == 0 {
		return ErrCartEmpty
	}

	lines := make([]services.OrderLine, 0, len(c.items))
	for id, qty := range c.items {
		lines = append(lines, services.OrderLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	c.lines = lines
	c.items = nil
	c.finalized = true
	return nil
}

// Lines returns the frozen line list; nil until Finalize.
func (c *Cart) Lines() []services.OrderLine {
	return c.lines
}

// Snapshot returns the building entries ordered by product id, for summaries.
func (c *Cart) Snapshot() []services.OrderLine {
	if c.finalized {
		return c.lines
	}
	lines := make([]services.OrderLine, 0, len(c.items))
	for id, qty := range c.items {
		lines = append(lines, services.OrderLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}
