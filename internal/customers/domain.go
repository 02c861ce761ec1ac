package customers

import "time"

// Customer is a buyer the store tracks for installment follow-up.
type Customer struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Note      string    `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateCustomerRequest registers a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone,omitempty" validate:"max=40"`
	Note  string `json:"note,omitempty" validate:"max=500"`
}

// UpdateCustomerRequest edits customer contact details.
type UpdateCustomerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone,omitempty" validate:"max=40"`
	Note  string `json:"note,omitempty" validate:"max=500"`
}

// ListCustomersRequest filters the directory.
type ListCustomersRequest struct {
	Search string `json:"search,omitempty" validate:"max=200"`
	Limit  int    `json:"limit" validate:"gte=0,lte=500"`
	Offset int    `json:"offset" validate:"gte=0"`
}
