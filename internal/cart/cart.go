// Package cart holds the in-memory state of one sale in progress. A Cart is
// owned by a single sale-creation session and is never shared between
// concurrent flows, so it carries no locking. Availability is a snapshot taken
// when a product is added; the committer re-validates against the stock ledger.
package cart

import (
	"fmt"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// ProductSnapshot captures the product fields the cart needs at add time.
type ProductSnapshot struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Available int     `json:"available"`
}

// Line is one product entry in the cart.
type Line struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price times quantity for the line.
func (l Line) Subtotal() float64 {
	return l.Product.UnitPrice * float64(l.Quantity)
}

// Cart accumulates lines for one in-progress sale.
type Cart struct {
	customerID *int64
	lines      []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// SetCustomer attaches the selected customer. Nil clears the selection.
func (c *Cart) SetCustomer(id *int64) {
	c.customerID = id
}

// CustomerID returns the selected customer, if any.
func (c *Cart) CustomerID() *int64 {
	return c.customerID
}

// AddLine adds quantity units of a product, merging with an existing line for
// the same product. It fails without mutating the cart when the combined
// quantity exceeds the snapshot availability.
func (c *Cart) AddLine(product ProductSnapshot, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	}
	if product.ID == 0 {
		return fmt.Errorf("%w: product required", shared.ErrValidation)
	}

	for i, line := range c.lines {
		if line.Product.ID != product.ID {
			continue
		}
		combined := line.Quantity + quantity
		if combined > line.Product.Available {
			return fmt.Errorf("%w: product %q has %d units available, cart would hold %d",
				shared.ErrInsufficientStock, line.Product.Name, line.Product.Available, combined)
		}
		c.lines[i].Quantity = combined
		return nil
	}

	if quantity > product.Available {
		return fmt.Errorf("%w: product %q has %d units available, requested %d",
			shared.ErrInsufficientStock, product.Name, product.Available, quantity)
	}
	c.lines = append(c.lines, Line{Product: product, Quantity: quantity})
	return nil
}

// UpdateLineQuantity sets the quantity for a product already in the cart.
// A quantity of zero or less removes the line.
func (c *Cart) UpdateLineQuantity(productID int64, quantity int) error {
	if quantity <= 0 {
		c.RemoveLine(productID)
		return nil
	}
	for i, line := range c.lines {
		if line.Product.ID != productID {
			continue
		}
		if quantity > line.Product.Available {
			return fmt.Errorf("%w: product %q has %d units available, requested %d",
				shared.ErrInsufficientStock, line.Product.Name, line.Product.Available, quantity)
		}
		c.lines[i].Quantity = quantity
		return nil
	}
	return fmt.Errorf("%w: product %d not in cart", shared.ErrNotFound, productID)
}

// RemoveLine drops the line for a product. Removing an absent product is a no-op.
func (c *Cart) RemoveLine(productID int64) {
	for i, line := range c.lines {
		if line.Product.ID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total recomputes the cart total from current lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// ItemCount recomputes the total unit count from current lines.
func (c *Cart) ItemCount() int {
	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}
