package domain

// Property is the slice of a catalog listing the booking core needs.
type Property struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LandlordID   string `json:"landlord_id"`
	LandlordName string `json:"landlord_name"`
	Price        Money  `json:"price"`
}
