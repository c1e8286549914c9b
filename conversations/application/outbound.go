package application

import (
	"context"
	"errors"
	"strings"
	"time"

	clientApp "github.com/AzielCF/az-crm/clients/application"
	"github.com/AzielCF/az-crm/conversations/domain"
	"github.com/AzielCF/az-crm/infrastructure/evolution"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/sirupsen/logrus"
)

// TextSender is the provider call used for agent replies.
type TextSender interface {
	SendText(ctx context.Context, instanceID string, req evolution.SendTextRequest) (evolution.SendResult, error)
}

// OutboundService sends agent messages through the tenant's instance and records them.
type OutboundService struct {
	sender   TextSender
	tenants  tenantDomain.TenantRepository
	clients  *clientApp.ClientResolver
	messages domain.MessageRepository
}

func NewOutboundService(sender TextSender, tenants tenantDomain.TenantRepository, clients *clientApp.ClientResolver, messages domain.MessageRepository) *OutboundService {
	return &OutboundService{
		sender:   sender,
		tenants:  tenants,
		clients:  clients,
		messages: messages,
	}
}

// SendText delivers text to phone. The message is only recorded once the provider accepted it.
func (s *OutboundService) SendText(ctx context.Context, tenantID, phone, text string) (*domain.Message, error) {
	phone = utils.NormalizePhone(phone)
	text = strings.TrimSpace(text)
	if phone == "" || text == "" {
		return nil, pkgError.ValidationError("phone and text are required")
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantDomain.ErrTenantNotFound) {
			return nil, pkgError.NotFoundError("tenant not found")
		}
		return nil, err
	}
	if tenant.InstanceID == "" || !tenant.Connected {
		return nil, pkgError.ValidationError("whatsapp is not connected for this tenant")
	}

	result, err := s.sender.SendText(ctx, tenant.InstanceID, evolution.SendTextRequest{Number: phone, Text: text})
	if err != nil {
		return nil, err
	}

	client, _, err := s.clients.ResolveOrCreate(ctx, tenantID, phone, "")
	if err != nil {
		return nil, &pkgError.PersistenceError{Op: "resolve client", Err: err}
	}

	status := strings.ToLower(result.Status)
	if status == "" {
		status = "sent"
	}
	msg := &domain.Message{
		TenantID:          tenantID,
		ClientID:          client.ID,
		Phone:             phone,
		Sender:            domain.SenderAgent,
		Type:              domain.TypeText,
		Text:              text,
		ProviderMessageID: result.MessageID,
		Status:            status,
		Read:              true,
		Timestamp:         time.Now().UTC(),
	}
	if result.Timestamp > 0 {
		msg.Timestamp = time.Unix(result.Timestamp, 0).UTC()
	}

	if _, err := s.messages.Save(ctx, msg); err != nil {
		// The text already left; losing the history row is logged, not surfaced as a send failure.
		logrus.WithError(err).WithFields(logrus.Fields{
			"tenant_id":  tenantID,
			"message_id": result.MessageID,
		}).Error("[OUTBOUND] message sent but not recorded")
		return msg, nil
	}

	logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "client_id": client.ID}).Info("[OUTBOUND] text sent")
	return msg, nil
}

// History returns the latest messages exchanged with a client, newest first.
func (s *OutboundService) History(ctx context.Context, tenantID, clientID string, limit int) ([]*domain.Message, error) {
	return s.messages.ListByClient(ctx, tenantID, clientID, limit)
}
