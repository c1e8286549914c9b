package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	clientDomain "github.com/AzielCF/az-crm/clients/domain"
	convDomain "github.com/AzielCF/az-crm/conversations/domain"
	"github.com/AzielCF/az-crm/infrastructure/evolution"
	"github.com/AzielCF/az-crm/ingestion/domain"
	instanceDomain "github.com/AzielCF/az-crm/instances/domain"
	"github.com/AzielCF/az-crm/integrations/automation"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

type TenantResolver interface {
	ResolveTenant(ctx context.Context, instanceID string) (string, error)
}

type ClientResolver interface {
	ResolveOrCreate(ctx context.Context, tenantID, phone, pushName string) (*clientDomain.Client, bool, error)
}

type StateReconciler interface {
	Reconcile(ctx context.Context, obs instanceDomain.Observation) (*instanceDomain.InstanceRecord, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, trigger automation.Trigger) bool
}

// Pipeline turns provider webhook deliveries into CRM state.
type Pipeline struct {
	tenants    TenantResolver
	clients    ClientResolver
	messages   convDomain.MessageRepository
	reconciler StateReconciler
	dispatcher Dispatcher
	now        func() time.Time
}

func NewPipeline(tenants TenantResolver, clients ClientResolver, messages convDomain.MessageRepository, reconciler StateReconciler, dispatcher Dispatcher) *Pipeline {
	return &Pipeline{
		tenants:    tenants,
		clients:    clients,
		messages:   messages,
		reconciler: reconciler,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Handle processes every item of the delivery independently. Only persistence
// failures are returned, so the provider redelivers; everything else is logged.
func (p *Pipeline) Handle(ctx context.Context, env *domain.Envelope) error {
	log := logrus.WithFields(logrus.Fields{"event": env.Event, "instance": env.Instance})

	var handle func(context.Context, string, json.RawMessage) error
	switch env.Kind() {
	case domain.EventMessagesUpsert:
		handle = p.handleUpsert
	case domain.EventMessagesUpdate:
		handle = p.handleStatusUpdate
	case domain.EventConnectionUpdate:
		handle = p.handleConnectionUpdate
	case domain.EventQRCodeUpdated:
		handle = p.handleQRCodeUpdated
	default:
		log.Debug("[WEBHOOK] unhandled event kind, dropping")
		return nil
	}

	var errs []error
	for i, item := range env.Items() {
		err := handle(ctx, env.Instance, item)
		if err == nil {
			continue
		}

		var resErr *pkgError.ResolutionError
		var persistErr *pkgError.PersistenceError
		switch {
		case errors.As(err, &resErr):
			log.WithError(err).Warnf("[WEBHOOK] item %d abandoned", i)
		case errors.As(err, &persistErr):
			log.WithError(err).Errorf("[WEBHOOK] item %d failed to persist", i)
			errs = append(errs, err)
		default:
			log.WithError(err).Warnf("[WEBHOOK] item %d skipped", i)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) handleUpsert(ctx context.Context, instanceID string, raw json.RawMessage) error {
	var data domain.MessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Join(domain.ErrMalformedEvent, err)
	}

	jid := data.Key.RemoteJID
	if data.Key.FromMe || jid == "" || utils.IsGroupJID(jid) || utils.IsBroadcastJID(jid) {
		return nil
	}
	phone := utils.PhoneFromJID(jid)
	if phone == "" {
		return nil
	}

	tenantID, err := p.tenants.ResolveTenant(ctx, instanceID)
	if err != nil {
		return err
	}

	content := domain.Classify(data.Message, data.MediaURL)

	client, _, err := p.clients.ResolveOrCreate(ctx, tenantID, phone, data.PushName)
	if err != nil {
		return &pkgError.PersistenceError{Op: "resolve client", Err: err}
	}

	status := strings.ToLower(strings.TrimSpace(data.Status))
	if status == "" {
		status = "received"
	}
	msg := &convDomain.Message{
		TenantID:          tenantID,
		ClientID:          client.ID,
		Phone:             phone,
		Sender:            convDomain.SenderClient,
		Type:              convDomain.MessageType(content.Kind),
		Text:              content.Text,
		MediaURL:          content.MediaURL,
		ProviderMessageID: data.Key.ID,
		Status:            status,
		Timestamp:         data.MessageTimestamp.Time(p.now()),
	}

	inserted, err := p.messages.Save(ctx, msg)
	if err != nil {
		return &pkgError.PersistenceError{Op: "save message", Err: err}
	}
	if !inserted {
		logrus.WithField("provider_message_id", data.Key.ID).Debug("[WEBHOOK] duplicate delivery ignored")
		return nil
	}

	p.dispatcher.Dispatch(ctx, automation.Trigger{
		ConversationID: msg.ID,
		Phone:          phone,
		Message:        content.Text,
		ClientID:       client.ID,
		TenantID:       tenantID,
		PushName:       strings.TrimSpace(data.PushName),
		MessageType:    string(content.Kind),
		Instance:       instanceID,
	})
	return nil
}

func (p *Pipeline) handleStatusUpdate(ctx context.Context, instanceID string, raw json.RawMessage) error {
	var update domain.StatusUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return errors.Join(domain.ErrMalformedEvent, err)
	}
	providerID := update.ProviderMessageID()
	status, read := update.Delivery()
	if providerID == "" || status == "" {
		return nil
	}

	tenantID, err := p.tenants.ResolveTenant(ctx, instanceID)
	if err != nil {
		return err
	}

	if _, err := p.messages.UpdateStatus(ctx, tenantID, providerID, status, read); err != nil {
		return &pkgError.PersistenceError{Op: "update message status", Err: err}
	}
	return nil
}

func (p *Pipeline) handleConnectionUpdate(ctx context.Context, instanceID string, raw json.RawMessage) error {
	var data domain.ConnectionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Join(domain.ErrMalformedEvent, err)
	}
	if data.State == "" {
		return nil
	}

	tenantID, err := p.tenants.ResolveTenant(ctx, instanceID)
	if err != nil {
		return err
	}

	_, err = p.reconciler.Reconcile(ctx, instanceDomain.Observation{
		TenantID:   tenantID,
		InstanceID: instanceID,
		State:      instanceDomain.ProviderState(evolution.NormalizeState(data.State)),
		Phone:      utils.PhoneFromJID(data.Wuid),
		Source:     "webhook",
	})
	return err
}

func (p *Pipeline) handleQRCodeUpdated(ctx context.Context, instanceID string, raw json.RawMessage) error {
	var data domain.QRCodeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Join(domain.ErrMalformedEvent, err)
	}
	qr := evolution.RenderQR(data.QRCode.Base64, data.QRCode.Code)
	if qr == "" {
		return nil
	}

	tenantID, err := p.tenants.ResolveTenant(ctx, instanceID)
	if err != nil {
		return err
	}

	_, err = p.reconciler.Reconcile(ctx, instanceDomain.Observation{
		TenantID:   tenantID,
		InstanceID: instanceID,
		State:      instanceDomain.StateConnecting,
		QRCode:     qr,
		Source:     "webhook",
	})
	return err
}
