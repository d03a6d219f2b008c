package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"welcome-agent/internal/email/domain"
)

// Cursor is the position of the last record of a page in created_at DESC, id DESC order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type ListFilter struct {
	WorkspaceID string
	AgentID     string
	Status      domain.Status
	After       *Cursor
	Limit       int
}

type RecordRepository interface {
	Create(rec *domain.Record) error
	FindByID(id string) (*domain.Record, error)
	FindBySourceMessageID(sourceID string) (*domain.Record, error)
	List(filter ListFilter) ([]domain.Record, error)
	Count(filter ListFilter) (int64, error)
	// Transition moves a record from one status to another and applies fields in the same
	// conditional UPDATE. It reports false when the record was no longer in from or a send holds it.
	Transition(id string, from, to domain.Status, fields map[string]interface{}) (bool, error)
	UpdateDraft(id string, fields map[string]interface{}) (bool, error)

	// Claim marks an under_review record as being sent. A claim older than staleBefore is
	// treated as abandoned and may be taken over.
	Claim(id string, at, staleBefore time.Time) (bool, error)
	ReleaseClaim(id string) error
	// Finish moves a claimed record to its delivery outcome and drops the claim.
	Finish(id string, to domain.Status, fields map[string]interface{}) (bool, error)
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(rec *domain.Record) error {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = now
	return r.db.Create(rec).Error
}

func (r *recordRepository) FindByID(id string) (*domain.Record, error) {
	var rec domain.Record
	if err := r.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) FindBySourceMessageID(sourceID string) (*domain.Record, error) {
	var rec domain.Record
	if err := r.db.Where("source_message_id = ?", sourceID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) scope(filter ListFilter) *gorm.DB {
	q := r.db.Model(&domain.Record{}).Where("workspace_id = ?", filter.WorkspaceID)
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

// List returns up to filter.Limit records strictly after filter.After.
func (r *recordRepository) List(filter ListFilter) ([]domain.Record, error) {
	q := r.scope(filter)
	if filter.After != nil {
		at := filter.After.CreatedAt.UTC()
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", at, at, filter.After.ID)
	}

	var recs []domain.Record
	err := q.Order("created_at DESC").Order("id DESC").Limit(filter.Limit).Find(&recs).Error
	return recs, err
}

func (r *recordRepository) Count(filter ListFilter) (int64, error) {
	var total int64
	err := r.scope(filter).Count(&total).Error
	return total, err
}

func (r *recordRepository) Transition(id string, from, to domain.Status, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.Model(&domain.Record{}).
		Where("id = ? AND status = ? AND sending_at IS NULL", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *recordRepository) UpdateDraft(id string, fields map[string]interface{}) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.Model(&domain.Record{}).
		Where("id = ? AND status = ? AND sending_at IS NULL", id, domain.StatusUnderReview).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *recordRepository) Claim(id string, at, staleBefore time.Time) (bool, error) {
	res := r.db.Model(&domain.Record{}).
		Where("id = ? AND status = ?", id, domain.StatusUnderReview).
		Where("sending_at IS NULL OR sending_at < ?", staleBefore.UTC()).
		Updates(map[string]interface{}{"sending_at": at.UTC(), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *recordRepository) ReleaseClaim(id string) error {
	return r.db.Model(&domain.Record{}).
		Where("id = ? AND status = ?", id, domain.StatusUnderReview).
		Updates(map[string]interface{}{"sending_at": nil, "updated_at": time.Now().UTC()}).Error
}

func (r *recordRepository) Finish(id string, to domain.Status, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"sending_at": nil,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.Model(&domain.Record{}).
		Where("id = ? AND status = ? AND sending_at IS NOT NULL", id, domain.StatusUnderReview).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
