package identity

import "time"

// Default coordinates used for the guest placeholder.
const (
	DefaultLat = 43.4
	DefaultLng = -80.5
)

// Account is one of our application's customer accounts. ExternalID is the
// partner's identifier for the same account; it stays empty until the first
// successful reconciliation and is unique once set.
type Account struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	ExternalID string    `bson:"external_id,omitempty" json:"externalId,omitempty"`
	AdminEmail string    `bson:"admin_email" json:"adminEmail"`
	Name       string    `bson:"account_name" json:"accountName"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// User is one of our application's users. A user always belongs to exactly
// one account; ExternalID is unique within that account once set. Lat/Lng are
// the application's own address data.
type User struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	AccountID  string    `bson:"account_id" json:"accountId"`
	ExternalID string    `bson:"external_id,omitempty" json:"externalId,omitempty"`
	Username   string    `bson:"username" json:"username"`
	Email      string    `bson:"email" json:"email"`
	FirstName  string    `bson:"first_name" json:"firstName"`
	LastName   string    `bson:"last_name" json:"lastName"`
	Lat        float64   `bson:"lat" json:"lat"`
	Lng        float64   `bson:"lng" json:"lng"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// GuestUser returns the non-persisted placeholder used when a requesting user
// is unknown. It is never written to storage.
func GuestUser() *User {
	return &User{
		FirstName: "guest",
		Lat:       DefaultLat,
		Lng:       DefaultLng,
	}
}
