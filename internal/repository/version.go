package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

const uniqueViolation = "23505"

// ErrDuplicate reports an insert rejected by a unique index.
var ErrDuplicate = errors.New("duplicate record")

// expectOneRow turns a compare-and-swap update that matched nothing into a
// version conflict so callers can reload and re-evaluate.
func expectOneRow(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s update rows: %w", entity, err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrVersionConflict, entity+" was modified concurrently")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func pageBounds(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size, (page - 1) * size
}
