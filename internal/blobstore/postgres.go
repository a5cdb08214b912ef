package blobstore

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

type attachmentRow struct {
	Key          string `gorm:"primaryKey"`
	ContentType  string
	Size         int64
	CacheControl string
	Data         []byte
	CreatedAt    time.Time
}

func (attachmentRow) TableName() string { return "attachments" }

// PostgresBackend keeps objects in the attachments table. Objects are served
// back by this service, so URLs point at its own download route.
type PostgresBackend struct {
	db      *gorm.DB
	baseURL string
}

func NewPostgresBackend(db *gorm.DB, publicBaseURL string) *PostgresBackend {
	return &PostgresBackend{db: db, baseURL: publicBaseURL}
}

func (b *PostgresBackend) Put(ctx context.Context, key string, data []byte, contentType string, opts PutOptions) error {
	row := attachmentRow{
		Key:          key,
		ContentType:  contentType,
		Size:         int64(len(data)),
		CacheControl: opts.CacheControl,
		Data:         data,
		CreatedAt:    time.Now(),
	}
	tx := b.db.WithContext(ctx)
	if opts.Overwrite {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"content_type", "size", "cache_control", "data", "created_at"}),
		})
	}
	err := tx.Create(&row).Error
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (b *PostgresBackend) Get(ctx context.Context, key string) (*Object, error) {
	var row attachmentRow
	err := b.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &Object{Key: row.Key, ContentType: row.ContentType, Size: row.Size, Data: row.Data}, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	return b.db.WithContext(ctx).Where("key = ?", key).Delete(&attachmentRow{}).Error
}

func (b *PostgresBackend) URL(key string) string {
	return b.baseURL + "/attachments?filename=" + url.QueryEscape(key)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
