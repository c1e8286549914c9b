package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/instances/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type instanceModel struct {
	InstanceID     string     `gorm:"primaryKey;column:instance_id"`
	TenantID       string     `gorm:"column:tenant_id;not null;index"`
	Status         string     `gorm:"column:status;not null;default:'disconnected'"`
	QRCode         string     `gorm:"column:qr_code;type:text"`
	PhoneNumber    string     `gorm:"column:phone_number"`
	ConnectedAt    *time.Time `gorm:"column:connected_at"`
	DisconnectedAt *time.Time `gorm:"column:disconnected_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

func (instanceModel) TableName() string { return "whatsapp_instances" }

// --- Repository Implementation ---

type InstanceGormRepository struct {
	db *gorm.DB
}

func NewInstanceGormRepository(db *gorm.DB) *InstanceGormRepository {
	return &InstanceGormRepository{db: db}
}

func (r *InstanceGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&instanceModel{})
}

// Upsert writes the full snapshot keyed by instance id.
func (r *InstanceGormRepository) Upsert(ctx context.Context, record *domain.InstanceRecord) error {
	now := time.Now().UTC()
	record.UpdatedAt = now

	model := instanceModel{
		InstanceID:     record.InstanceID,
		TenantID:       record.TenantID,
		Status:         string(record.Status),
		QRCode:         record.QRCode,
		PhoneNumber:    record.PhoneNumber,
		ConnectedAt:    record.ConnectedAt,
		DisconnectedAt: record.DisconnectedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tenant_id", "status", "qr_code", "phone_number", "connected_at", "disconnected_at", "updated_at",
		}),
	}).Create(&model).Error
}

func (r *InstanceGormRepository) GetByInstanceID(ctx context.Context, instanceID string) (*domain.InstanceRecord, error) {
	var m instanceModel
	if err := r.db.WithContext(ctx).First(&m, "instance_id = ?", instanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return fromInstanceModel(m), nil
}

func (r *InstanceGormRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.InstanceRecord, error) {
	var m instanceModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("updated_at DESC").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return fromInstanceModel(m), nil
}

func fromInstanceModel(m instanceModel) *domain.InstanceRecord {
	return &domain.InstanceRecord{
		InstanceID:     m.InstanceID,
		TenantID:       m.TenantID,
		Status:         domain.Status(m.Status),
		QRCode:         m.QRCode,
		PhoneNumber:    m.PhoneNumber,
		ConnectedAt:    m.ConnectedAt,
		DisconnectedAt: m.DisconnectedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
