package storage

import (
	"context"
	"errors"

	"github.com/careerpath/careerdesk/libs/db"
	"github.com/careerpath/careerdesk/services/booking-service/internal/accounts"
	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type AccountRepository struct {
	pool *db.Pool
}

func NewAccountRepository(pool *db.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) InAccountTx(ctx context.Context, fn func(accounts.Tx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(accountTx{tx: tx})
	})
}

func (r *AccountRepository) Account(ctx context.Context, id string) (model.Account, error) {
	if _, ok := parseID(id); !ok {
		return model.Account{}, apperr.ErrNotFound
	}
	var a model.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, username, email, first_name, last_name, password_hash, role, created_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.Role, &a.CreatedAt)
	return a, translate(err)
}

func (r *AccountRepository) Profile(ctx context.Context, accountID string) (model.Profile, error) {
	if _, ok := parseID(accountID); !ok {
		return model.Profile{}, apperr.ErrNotFound
	}
	p := model.Profile{AccountID: accountID}
	err := r.pool.QueryRow(ctx, `
		SELECT phone_number, company, position, city, country, bio
		FROM user_profiles WHERE account_id = $1
	`, accountID).Scan(&p.PhoneNumber, &p.Company, &p.Position, &p.City, &p.Country, &p.Bio)
	return p, translate(err)
}

func (r *AccountRepository) Preferences(ctx context.Context, accountID string) (model.Preferences, error) {
	if _, ok := parseID(accountID); !ok {
		return model.Preferences{}, apperr.ErrNotFound
	}
	return preferences(ctx, r.pool, accountID)
}

func (r *AccountRepository) UpdatePreferences(ctx context.Context, p model.Preferences) error {
	if _, ok := parseID(p.AccountID); !ok {
		return apperr.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_preferences
		SET email_notifications = $2,
			sms_notifications = $3,
			appointment_reminders = $4,
			newsletter_subscription = $5,
			marketing_emails = $6,
			updated_at = now()
		WHERE account_id = $1
	`, p.AccountID, p.EmailNotifications, p.SMSNotifications, p.AppointmentReminders,
		p.NewsletterSubscription, p.MarketingEmails)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func preferences(ctx context.Context, q querier, accountID string) (model.Preferences, error) {
	p := model.Preferences{AccountID: accountID}
	err := q.QueryRow(ctx, `
		SELECT email_notifications, sms_notifications, appointment_reminders,
			newsletter_subscription, marketing_emails
		FROM user_preferences WHERE account_id = $1
	`, accountID).Scan(&p.EmailNotifications, &p.SMSNotifications, &p.AppointmentReminders,
		&p.NewsletterSubscription, &p.MarketingEmails)
	if err != nil {
		return model.Preferences{}, translate(err)
	}
	return p, nil
}

type accountTx struct {
	tx pgx.Tx
}

func (t accountTx) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (id, username, email, first_name, last_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.Role, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		switch pgErr.ConstraintName {
		case "accounts_username_key":
			return apperr.Invalid("username", "is already taken")
		case "accounts_email_key":
			return apperr.Invalid("email", "is already registered")
		}
		return apperr.ErrConflict
	}
	return err
}

func (t accountTx) InsertProfile(ctx context.Context, p model.Profile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_profiles (account_id, phone_number, company, position, city, country, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.AccountID, p.PhoneNumber, p.Company, p.Position, p.City, p.Country, p.Bio)
	return translate(err)
}

func (t accountTx) InsertPreferences(ctx context.Context, p model.Preferences) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_preferences
			(account_id, email_notifications, sms_notifications, appointment_reminders,
			 newsletter_subscription, marketing_emails)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.AccountID, p.EmailNotifications, p.SMSNotifications, p.AppointmentReminders,
		p.NewsletterSubscription, p.MarketingEmails)
	return translate(err)
}
