package model

import "time"

type Account struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	Role         string
	CreatedAt    time.Time
}

type Profile struct {
	AccountID   string
	PhoneNumber string
	Company     string
	Position    string
	City        string
	Country     string
	Bio         string
}

type Preferences struct {
	AccountID              string
	EmailNotifications     bool
	SMSNotifications       bool
	AppointmentReminders   bool
	NewsletterSubscription bool
	MarketingEmails        bool
}

// DefaultPreferences are applied to every new account.
func DefaultPreferences(accountID string) Preferences {
	return Preferences{
		AccountID:              accountID,
		EmailNotifications:     true,
		SMSNotifications:       false,
		AppointmentReminders:   true,
		NewsletterSubscription: true,
		MarketingEmails:        true,
	}
}
