// Package accounts creates client accounts together with their profile and
// notification preferences.
package accounts

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/careerpath/careerdesk/libs/auth"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Tx interface {
	// InsertAccount returns a ValidationError when the username or email is taken.
	InsertAccount(ctx context.Context, a model.Account) error
	InsertProfile(ctx context.Context, p model.Profile) error
	InsertPreferences(ctx context.Context, p model.Preferences) error
}

type Store interface {
	InAccountTx(ctx context.Context, fn func(Tx) error) error
	Account(ctx context.Context, id string) (model.Account, error)
	Profile(ctx context.Context, accountID string) (model.Profile, error)
	Preferences(ctx context.Context, accountID string) (model.Preferences, error)
	UpdatePreferences(ctx context.Context, p model.Preferences) error
}

const minPasswordLen = 8

// Builder writes the account, its empty profile and default preferences in one
// transaction, so an account never exists without them.
type Builder struct {
	store Store
	cost  int
	now   func() time.Time
	newID func() string
}

func NewBuilder(store Store, bcryptCost int) *Builder {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Builder{store: store, cost: bcryptCost, now: time.Now, newID: uuid.NewString}
}

type Registration struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type Created struct {
	Account     model.Account
	Profile     model.Profile
	Preferences model.Preferences
}

func (b *Builder) Register(ctx context.Context, reg Registration) (Created, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Phone = strings.TrimSpace(reg.Phone)

	fields := apperr.Fields{}
	switch n := utf8.RuneCountInString(reg.Username); {
	case n == 0:
		fields.Add("username", "is required")
	case n > 150:
		fields.Add("username", "must be at most 150 characters")
	case strings.ContainsAny(reg.Username, " \t\n"):
		fields.Add("username", "must not contain spaces")
	}
	if addr, err := mail.ParseAddress(reg.Email); err != nil || addr.Address != reg.Email {
		fields.Add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(reg.Password) < minPasswordLen {
		fields.Add("password", "must be at least 8 characters")
	}
	if len(reg.Password) > 72 {
		fields.Add("password", "must be at most 72 bytes")
	}
	if utf8.RuneCountInString(reg.Phone) > 20 {
		fields.Add("phone", "must be at most 20 characters")
	}
	if err := fields.Err(); err != nil {
		return Created{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), b.cost)
	if err != nil {
		return Created{}, err
	}

	acc := model.Account{
		ID:           b.newID(),
		Username:     reg.Username,
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: hash,
		Role:         auth.RoleClient,
		CreatedAt:    b.now().UTC(),
	}
	out := Created{
		Account:     acc,
		Profile:     model.Profile{AccountID: acc.ID, PhoneNumber: reg.Phone},
		Preferences: model.DefaultPreferences(acc.ID),
	}
	err = b.store.InAccountTx(ctx, func(tx Tx) error {
		if err := tx.InsertAccount(ctx, out.Account); err != nil {
			return err
		}
		if err := tx.InsertProfile(ctx, out.Profile); err != nil {
			return err
		}
		return tx.InsertPreferences(ctx, out.Preferences)
	})
	if err != nil {
		return Created{}, err
	}
	return out, nil
}

// CheckPassword reports whether password matches the account's stored hash.
func CheckPassword(a model.Account, password string) bool {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
}

func (b *Builder) Preferences(ctx context.Context, accountID string) (model.Preferences, error) {
	return b.store.Preferences(ctx, accountID)
}

// PreferencesPatch changes only the fields that are set.
type PreferencesPatch struct {
	EmailNotifications     *bool
	SMSNotifications       *bool
	AppointmentReminders   *bool
	NewsletterSubscription *bool
	MarketingEmails        *bool
}

func (b *Builder) UpdatePreferences(ctx context.Context, accountID string, patch PreferencesPatch) (model.Preferences, error) {
	p, err := b.store.Preferences(ctx, accountID)
	if err != nil {
		return model.Preferences{}, err
	}
	apply := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&p.EmailNotifications, patch.EmailNotifications)
	apply(&p.SMSNotifications, patch.SMSNotifications)
	apply(&p.AppointmentReminders, patch.AppointmentReminders)
	apply(&p.NewsletterSubscription, patch.NewsletterSubscription)
	apply(&p.MarketingEmails, patch.MarketingEmails)
	if err := b.store.UpdatePreferences(ctx, p); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}
