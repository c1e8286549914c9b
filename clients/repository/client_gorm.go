package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/clients/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type clientModel struct {
	ID        string    `gorm:"primaryKey"`
	TenantID  string    `gorm:"uniqueIndex:idx_clients_tenant_phone,priority:1;not null"`
	Phone     string    `gorm:"uniqueIndex:idx_clients_tenant_phone,priority:2;not null"`
	Name      string    `gorm:"index:idx_clients_name"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (clientModel) TableName() string {
	return "clients"
}

// --- Repository Implementation ---

type ClientGormRepository struct {
	db *gorm.DB
}

func NewClientGormRepository(db *gorm.DB) *ClientGormRepository {
	return &ClientGormRepository{db: db}
}

func (r *ClientGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&clientModel{})
}

// Create uses ON CONFLICT DO NOTHING so a concurrent insert for the same
// (tenant, phone) surfaces as ErrDuplicateClient instead of a driver error.
func (r *ClientGormRepository) Create(ctx context.Context, client *domain.Client) error {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	model := toClientModel(client)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domain.ErrDuplicateClient
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDuplicateClient
	}
	return nil
}

func (r *ClientGormRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Client, error) {
	var m clientModel
	if err := r.db.WithContext(ctx).First(&m, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return fromClientModel(m), nil
}

func (r *ClientGormRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Client, error) {
	var m clientModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		Order("created_at ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientNotFound
		}
		return nil, err
	}
	return fromClientModel(m), nil
}

func (r *ClientGormRepository) UpdateName(ctx context.Context, tenantID, id, name string) error {
	result := r.db.WithContext(ctx).Model(&clientModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (r *ClientGormRepository) List(ctx context.Context, filter domain.ClientFilter) ([]*domain.Client, error) {
	query := r.db.WithContext(ctx).Model(&clientModel{}).Where("tenant_id = ?", filter.TenantID)

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ?", like, like)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var models []clientModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&models).Error; err != nil {
		return nil, err
	}

	clients := make([]*domain.Client, 0, len(models))
	for _, m := range models {
		clients = append(clients, fromClientModel(m))
	}
	return clients, nil
}

// --- Mappers ---

func toClientModel(c *domain.Client) clientModel {
	return clientModel{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Phone:     c.Phone,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func fromClientModel(m clientModel) *domain.Client {
	return &domain.Client{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Phone:     m.Phone,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
