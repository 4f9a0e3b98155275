package domain

import "time"

// User represents an account on the ratings site. The demographic fields
// come from account provisioning and play no role in recommendations.
type User struct {
	ID        int64
	Email     *string
	Age       *int
	Zipcode   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
