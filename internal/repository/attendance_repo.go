package repository

import (
	"context"
	"fmt"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceRepository is the gorm-backed attendance ledger.
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new AttendanceRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *AttendanceRepository: repository instance bound to db.
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Mark inserts rec unless a record for (rec.Name, rec.Date) already exists.
// The check and insert are one statement, so concurrent callers in separate
// processes cannot produce duplicates.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rec: record to insert; ID is filled on success.
//
// Returns:
//   - domain.MarkResult: Marked or AlreadyMarked.
//   - *domain.AttendanceRecord: the stored record for (name, date).
//   - error: non-nil if the database operation fails.
func (r *AttendanceRepository) Mark(ctx context.Context, rec *domain.AttendanceRecord) (domain.MarkResult, *domain.AttendanceRecord, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "date"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return "", nil, fmt.Errorf("failed to insert attendance: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return domain.Marked, rec, nil
	}

	var existing domain.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Where("name = ? AND date = ?", rec.Name, rec.Date).
		First(&existing).Error; err != nil {
		return "", nil, fmt.Errorf("failed to load existing attendance: %w", err)
	}
	return domain.AlreadyMarked, &existing, nil
}

// Query returns records matching filter in insertion order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: optional name and date; empty fields are ignored.
//
// Returns:
//   - []domain.AttendanceRecord: matching records ordered by ascending id.
//   - error: non-nil if the query fails.
func (r *AttendanceRepository) Query(ctx context.Context, filter domain.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	query := r.db.WithContext(ctx).Model(&domain.AttendanceRecord{})
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Date != "" {
		query = query.Where("date = ?", filter.Date)
	}

	records := []domain.AttendanceRecord{}
	if err := query.Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return records, nil
}

// Names returns the distinct names present in the ledger, sorted.
func (r *AttendanceRepository) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := r.db.WithContext(ctx).
		Model(&domain.AttendanceRecord{}).
		Distinct("name").
		Order("name ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list names: %w", err)
	}
	return names, nil
}

// Count returns the number of stored records.
func (r *AttendanceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.AttendanceRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ClearAll deletes every record and returns how many were removed.
func (r *AttendanceRepository) ClearAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&domain.AttendanceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear attendance: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DB returns the underlying database handle so sibling repositories can share it.
func (r *AttendanceRepository) DB() *gorm.DB {
	return r.db
}
