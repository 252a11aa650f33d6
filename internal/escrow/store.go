package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fundraiser/internal/models"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a campaign
var ErrSnapshotNotFound = errors.New("campaign snapshot not found")

// OperationFilter narrows a journal listing
type OperationFilter struct {
	Kind     string
	Campaign string
	Status   string
	Limit    int
	Offset   int
}

// Store persists the operation journal and campaign snapshots
type Store interface {
	RecordOperation(ctx context.Context, op *models.EscrowOperation) error
	ListOperations(ctx context.Context, filter OperationFilter) ([]models.EscrowOperation, int64, error)
	SaveSnapshot(ctx context.Context, snapshot *models.CampaignSnapshot) error
	GetSnapshot(ctx context.Context, campaign string) (*models.CampaignSnapshot, error)
	ListEnded(ctx context.Context, now time.Time) ([]models.CampaignSnapshot, error)
	UpdateSnapshotStatus(ctx context.Context, campaign, status string) error
}

// GormStore is the postgres implementation of Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) RecordOperation(ctx context.Context, op *models.EscrowOperation) error {
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("failed to record %s operation: %w", op.Kind, err)
	}
	return nil
}

func (s *GormStore) ListOperations(ctx context.Context, filter OperationFilter) ([]models.EscrowOperation, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.EscrowOperation{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Campaign != "" {
		query = query.Where("campaign = ?", filter.Campaign)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var ops []models.EscrowOperation
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&ops).Error
	if err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// snapshotUpsert replaces every stored column of a campaign's snapshot. A
// settled status survives later writes until the campaign is initialized
// again with a new start time.
func snapshotUpsert() clause.OnConflict {
	updates := clause.AssignmentColumns([]string{
		"maker", "mint", "vault",
		"amount_to_raise", "current_amount", "vault_balance",
		"time_started", "duration_seconds", "ends_at", "updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "status"},
		Value: gorm.Expr(
			"CASE WHEN campaign_snapshots.status = ? AND campaign_snapshots.time_started = excluded.time_started "+
				"THEN campaign_snapshots.status ELSE excluded.status END",
			models.CampaignSettled,
		),
	})
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign"}},
		DoUpdates: updates,
	}
}

// SaveSnapshot upserts the snapshot keyed by campaign address
func (s *GormStore) SaveSnapshot(ctx context.Context, snapshot *models.CampaignSnapshot) error {
	err := s.db.WithContext(ctx).Clauses(snapshotUpsert()).Create(snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", snapshot.Campaign, err)
	}
	return nil
}

func (s *GormStore) GetSnapshot(ctx context.Context, campaign string) (*models.CampaignSnapshot, error) {
	var snapshot models.CampaignSnapshot
	err := s.db.WithContext(ctx).Where("campaign = ?", campaign).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return &snapshot, nil
}

// ListEnded returns active campaigns whose duration has elapsed at now
func (s *GormStore) ListEnded(ctx context.Context, now time.Time) ([]models.CampaignSnapshot, error) {
	var snapshots []models.CampaignSnapshot
	err := s.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.CampaignActive, now).
		Order("ends_at ASC").
		Find(&snapshots).Error
	return snapshots, err
}

func (s *GormStore) UpdateSnapshotStatus(ctx context.Context, campaign, status string) error {
	result := s.db.WithContext(ctx).Model(&models.CampaignSnapshot{}).
		Where("campaign = ?", campaign).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// SaveEvent stores an event once; redelivered events are ignored
func (s *GormStore) SaveEvent(ctx context.Context, event *models.EscrowEvent) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", event.ID, err)
	}
	return nil
}
