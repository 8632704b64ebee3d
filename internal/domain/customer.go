package domain

import "time"

// Customer is the domain model for bank customers who sign in to the API.
type Customer struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	NationalID   string
	PhoneNumber  string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the customer onto the fields used for authentication.
func (c *Customer) Identity() Identity {
	return Identity{
		Subject:         c.Email,
		Active:          c.Active,
		AdminIdentifier: c.NationalID,
	}
}
