package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/conversations/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

// ProviderMessageID is nullable so agent drafts without a provider id never collide.
type messageModel struct {
	ID                string    `gorm:"primaryKey"`
	TenantID          string    `gorm:"not null;uniqueIndex:idx_conv_tenant_provider,priority:1;index:idx_conv_tenant_client,priority:1"`
	ClientID          string    `gorm:"not null;index:idx_conv_tenant_client,priority:2"`
	Phone             string    `gorm:"not null"`
	Sender            string    `gorm:"not null"`
	MessageType       string    `gorm:"not null;default:'text'"`
	Text              string    `gorm:"type:text"`
	MediaURL          string    `gorm:"type:text"`
	ProviderMessageID *string   `gorm:"uniqueIndex:idx_conv_tenant_provider,priority:2"`
	Status            string    `gorm:"default:''"`
	Read              bool      `gorm:"default:false"`
	Timestamp         time.Time `gorm:"not null;index"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (messageModel) TableName() string {
	return "conversation_messages"
}

// --- Repository Implementation ---

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&messageModel{})
}

func (r *MessageGormRepository) Save(ctx context.Context, msg *domain.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = msg.CreatedAt
	}

	model := toMessageModel(msg)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// Redelivery: point the caller at the row that is already there.
	var existing messageModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider_message_id = ?", msg.TenantID, msg.ProviderMessageID).
		First(&existing).Error; err != nil {
		return false, err
	}
	msg.ID = existing.ID
	return false, nil
}

func (r *MessageGormRepository) UpdateStatus(ctx context.Context, tenantID, providerMessageID, status string, read bool) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}
	updates := map[string]any{"status": status}
	if read {
		updates["read"] = true
	}
	result := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("tenant_id = ? AND provider_message_id = ?", tenantID, providerMessageID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MessageGormRepository) ListByClient(ctx context.Context, tenantID, clientID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(models))
	for _, m := range models {
		messages = append(messages, fromMessageModel(m))
	}
	return messages, nil
}

func (r *MessageGormRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).First(&m, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m), nil
}

// --- Mappers ---

func toMessageModel(msg *domain.Message) messageModel {
	var providerID *string
	if msg.ProviderMessageID != "" {
		id := msg.ProviderMessageID
		providerID = &id
	}
	return messageModel{
		ID:                msg.ID,
		TenantID:          msg.TenantID,
		ClientID:          msg.ClientID,
		Phone:             msg.Phone,
		Sender:            string(msg.Sender),
		MessageType:       string(msg.Type),
		Text:              msg.Text,
		MediaURL:          msg.MediaURL,
		ProviderMessageID: providerID,
		Status:            msg.Status,
		Read:              msg.Read,
		Timestamp:         msg.Timestamp,
		CreatedAt:         msg.CreatedAt,
	}
}

func fromMessageModel(m messageModel) *domain.Message {
	msg := &domain.Message{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ClientID:    m.ClientID,
		Phone:       m.Phone,
		Sender:      domain.Sender(m.Sender),
		Type:        domain.MessageType(m.MessageType),
		Text:        m.Text,
		MediaURL:    m.MediaURL,
		Status:      m.Status,
		Read:        m.Read,
		Timestamp:   m.Timestamp,
		CreatedAt:   m.CreatedAt,
	}
	if m.ProviderMessageID != nil {
		msg.ProviderMessageID = *m.ProviderMessageID
	}
	return msg
}
