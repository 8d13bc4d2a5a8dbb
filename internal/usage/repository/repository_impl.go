package repository

import (
	"context"

	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

// Insert stores the record in its kind's raw table. The subscription
// reference is checked before the write so no row with both or neither
// foreign key is ever produced.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, record usagedomain.Record) error {
	if !record.Kind.Valid() {
		return usagedomain.ErrInvalidKind
	}
	if err := record.Ref.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Create(record.Model()).Error
}
