package database

import (
	"context"

	"gorm.io/gorm"
)

// CountBy counts rows of model grouped by column, restricted to rows whose
// column value is in ids. Missing keys have no rows.
func CountBy(ctx context.Context, db *gorm.DB, model any, column string, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		GroupKey uint
		N        int64
	}
	err := db.WithContext(ctx).Model(model).
		Select(column+" AS group_key, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, Translate(err)
	}
	for _, r := range rows {
		out[r.GroupKey] = r.N
	}
	return out, nil
}
