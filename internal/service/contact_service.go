package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hygienix/backend/internal/model"
	"hygienix/backend/internal/repository"
)

type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// ContactService stores public inquiries and records one audit entry each.
type ContactService struct {
	contacts repository.ContactRepository
	audit    repository.NotificationRepository
	log      *slog.Logger
}

func NewContactService(contacts repository.ContactRepository, audit repository.NotificationRepository, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{contacts: contacts, audit: audit, log: logger.With("component", "contacts")}
}

func (s *ContactService) Submit(ctx context.Context, input ContactInput) (int64, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.Phone = normalizePhone(input.Phone)
	input.Message = strings.TrimSpace(input.Message)
	if input.Name == "" {
		return 0, validationErr("name is required")
	}
	if input.Message == "" {
		return 0, validationErr("message is required")
	}

	id, err := s.contacts.CreateContact(ctx, repository.CreateContactInput{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Message: input.Message,
	})
	if err != nil {
		return 0, fmt.Errorf("create contact: %w", err)
	}

	if _, err := s.audit.CreateNotification(context.WithoutCancel(ctx), repository.CreateNotificationInput{
		Type:    model.NotificationTypeContact,
		Title:   "New Inquiry",
		Message: "From " + input.Name,
		Meta:    map[string]any{"contactId": id},
	}); err != nil {
		s.log.Error("failed to record contact notification", "contact_id", id, "error", err)
	}
	return id, nil
}

func (s *ContactService) List(ctx context.Context) ([]model.Contact, error) {
	return s.contacts.ListContacts(ctx)
}
