package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/tenants/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type tenantModel struct {
	ID               string  `gorm:"primaryKey;column:id"`
	Slug             string  `gorm:"column:slug;index"`
	Name             string  `gorm:"column:name;not null"`
	InstanceID       *string `gorm:"column:instance_id;uniqueIndex"`
	Connected        bool    `gorm:"column:whatsapp_connected;default:false"`
	ConnectedPhone   string  `gorm:"column:whatsapp_phone"`
	AutomationPaused bool    `gorm:"column:automation_paused;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (tenantModel) TableName() string { return "tenants" }

// --- Repository Implementation ---

type TenantGormRepository struct {
	db *gorm.DB
}

func NewTenantGormRepository(db *gorm.DB) *TenantGormRepository {
	return &TenantGormRepository{db: db}
}

func (r *TenantGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&tenantModel{})
}

func (r *TenantGormRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	model := toTenantModel(tenant)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInstanceIDTaken
		}
		return err
	}
	return nil
}

func (r *TenantGormRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var m tenantModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return fromTenantModel(m), nil
}

func (r *TenantGormRepository) GetByInstanceID(ctx context.Context, instanceID string) (*domain.Tenant, error) {
	var m tenantModel
	if err := r.db.WithContext(ctx).First(&m, "instance_id = ?", instanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return fromTenantModel(m), nil
}

func (r *TenantGormRepository) AssignInstanceID(ctx context.Context, tenantID, instanceID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&tenantModel{}).
		Where("id = ? AND (instance_id IS NULL OR instance_id = '')", tenantID).
		Updates(map[string]any{"instance_id": instanceID, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, domain.ErrInstanceIDTaken
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TenantGormRepository) UpdateConnection(ctx context.Context, tenantID string, connected bool, phone string) error {
	result := r.db.WithContext(ctx).Model(&tenantModel{}).
		Where("id = ?", tenantID).
		Updates(map[string]any{
			"whatsapp_connected": connected,
			"whatsapp_phone":     phone,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantGormRepository) SetAutomationPaused(ctx context.Context, tenantID string, paused bool) error {
	result := r.db.WithContext(ctx).Model(&tenantModel{}).
		Where("id = ?", tenantID).
		Updates(map[string]any{"automation_paused": paused, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantGormRepository) IsAutomationPaused(ctx context.Context, tenantID string) (bool, error) {
	var m tenantModel
	err := r.db.WithContext(ctx).Select("id", "automation_paused").First(&m, "id = ?", tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, domain.ErrTenantNotFound
		}
		return false, err
	}
	return m.AutomationPaused, nil
}

// --- Mappers ---

func toTenantModel(t *domain.Tenant) tenantModel {
	m := tenantModel{
		ID:               t.ID,
		Slug:             t.Slug,
		Name:             t.Name,
		Connected:        t.Connected,
		ConnectedPhone:   t.ConnectedPhone,
		AutomationPaused: t.AutomationPaused,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.InstanceID != "" {
		id := t.InstanceID
		m.InstanceID = &id
	}
	return m
}

func fromTenantModel(m tenantModel) *domain.Tenant {
	t := &domain.Tenant{
		ID:               m.ID,
		Slug:             m.Slug,
		Name:             m.Name,
		Connected:        m.Connected,
		ConnectedPhone:   m.ConnectedPhone,
		AutomationPaused: m.AutomationPaused,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.InstanceID != nil {
		t.InstanceID = *m.InstanceID
	}
	return t
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
