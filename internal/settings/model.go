package settings

import "github.com/shopspring/decimal"

// Configuration keys known to the application.
const (
	KeyExtraPhotoPrice = "extra_photo_price"
	KeyPrintingPrice   = "printing_price"
)

// Pricing holds the default unit prices used to pre-fill the session form.
type Pricing struct {
	ExtraPhotoPrice decimal.Decimal
	PrintingPrice   decimal.Decimal
}

// SessionType classifies a shoot and carries its production SLAs in days.
type SessionType struct {
	ID                    int64
	Name                  string
	Abbreviation          string
	SelectionDeadlineDays int
	EditingDeadlineDays   int
}
