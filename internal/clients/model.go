package clients

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is one customer record with contact, address and CRM fields.
type Client struct {
	ID            int64
	Name          string
	Email         string
	Whatsapp      string
	LeadSource    string
	Tags          string
	AddressStreet string
	AddressCity   string
	AddressState  string
	AddressZip    string
	Birthday      *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LeadSources are the options offered on the client form. Free-text values
// from imports are still accepted.
var LeadSources = []string{
	"Instagram",
	"Facebook",
	"Google",
	"Referral",
	"Returning Client",
	"Other",
}

// InteractionChannels are the options for logging a client touchpoint.
var InteractionChannels = []string{
	"WhatsApp",
	"Instagram",
	"Email",
	"Phone",
	"In Person",
}

// InteractionLog is one dated touchpoint with a client.
type InteractionLog struct {
	ID       int64
	ClientID int64
	Date     time.Time
	Channel  string
	Notes    string
}

// SessionSummary is the slim session row shown on the client detail page.
type SessionSummary struct {
	ID           int64
	Code         string
	Date         time.Time
	TypeName     string
	KanbanStatus string
	TotalValue   decimal.Decimal
}

// Detail bundles a client profile with its CRM aggregates for the detail page.
type Detail struct {
	Client       Client
	Sessions     []SessionSummary
	Interactions []InteractionLog
	TotalPaid    decimal.Decimal
	PaidAmounts  map[int64]decimal.Decimal
}
