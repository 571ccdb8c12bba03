package memory

import (
	"zimba-booking/internal/core/domain"

	"github.com/shopspring/decimal"
)

// DemoProperties is the catalog loaded when running on the memory driver.
func DemoProperties() []domain.Property {
	return []domain.Property{
		{
			ID:           "prop_east_legon_2br",
			Name:         "East Legon 2-Bedroom Apartment",
			LandlordID:   "landlord_kwame",
			LandlordName: "Kwame Mensah",
			Price:        domain.Money{Amount: decimal.NewFromInt(2500), Currency: "GHS"},
		},
		{
			ID:           "prop_lekki_studio",
			Name:         "Lekki Phase 1 Studio",
			LandlordID:   "landlord_adaeze",
			LandlordName: "Adaeze Okafor",
			Price:        domain.Money{Amount: decimal.NewFromInt(450000), Currency: "NGN"},
		},
		{
			ID:           "prop_kilimani_1br",
			Name:         "Kilimani 1-Bedroom Flat",
			LandlordID:   "landlord_kwame",
			LandlordName: "Kwame Mensah",
			Price:        domain.Money{Amount: decimal.RequireFromString("85000.50"), Currency: "KES"},
		},
	}
}
