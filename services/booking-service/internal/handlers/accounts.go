package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/careerpath/careerdesk/libs/httpx"
	"github.com/careerpath/careerdesk/services/booking-service/internal/accounts"
	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
)

type Accounts interface {
	Register(ctx context.Context, reg accounts.Registration) (accounts.Created, error)
	Preferences(ctx context.Context, accountID string) (model.Preferences, error)
	UpdatePreferences(ctx context.Context, accountID string, patch accounts.PreferencesPatch) (model.Preferences, error)
}

type AccountHandler struct {
	accounts Accounts
	logger   *slog.Logger
}

func NewAccountHandler(accounts Accounts, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type accountResponse struct {
	ID          string              `json:"id"`
	Username    string              `json:"username"`
	Email       string              `json:"email"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Role        string              `json:"role"`
	CreatedAt   time.Time           `json:"created_at"`
	Preferences preferencesResponse `json:"preferences"`
}

type preferencesResponse struct {
	EmailNotifications     bool `json:"email_notifications"`
	SMSNotifications       bool `json:"sms_notifications"`
	AppointmentReminders   bool `json:"appointment_reminders"`
	NewsletterSubscription bool `json:"newsletter_subscription"`
	MarketingEmails        bool `json:"marketing_emails"`
}

type preferencesPatch struct {
	EmailNotifications     *bool `json:"email_notifications"`
	SMSNotifications       *bool `json:"sms_notifications"`
	AppointmentReminders   *bool `json:"appointment_reminders"`
	NewsletterSubscription *bool `json:"newsletter_subscription"`
	MarketingEmails        *bool `json:"marketing_emails"`
}

func toPreferences(p model.Preferences) preferencesResponse {
	return preferencesResponse{
		EmailNotifications:     p.EmailNotifications,
		SMSNotifications:       p.SMSNotifications,
		AppointmentReminders:   p.AppointmentReminders,
		NewsletterSubscription: p.NewsletterSubscription,
		MarketingEmails:        p.MarketingEmails,
	}
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	created, err := h.accounts.Register(r.Context(), accounts.Registration{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a := created.Account
	httpx.WriteJSON(w, http.StatusCreated, accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Role:        a.Role,
		CreatedAt:   a.CreatedAt,
		Preferences: toPreferences(created.Preferences),
	})
}

func (h *AccountHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Preferences(r.Context(), actorFrom(r).AccountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPreferences(p))
}

func (h *AccountHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesPatch
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	p, err := h.accounts.UpdatePreferences(r.Context(), actorFrom(r).AccountID, accounts.PreferencesPatch{
		EmailNotifications:     req.EmailNotifications,
		SMSNotifications:       req.SMSNotifications,
		AppointmentReminders:   req.AppointmentReminders,
		NewsletterSubscription: req.NewsletterSubscription,
		MarketingEmails:        req.MarketingEmails,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPreferences(p))
}
