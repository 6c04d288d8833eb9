package sqlite

import (
	"fmt"
	"strings"

	"github.com/rpggio/hq/internal/remote"
)

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "CHECK constraint failed") ||
		strings.Contains(err.Error(), "NOT NULL constraint failed")
}

// mapWriteError translates constraint failures into remote sentinels.
func mapWriteError(op string, err error) error {
	switch {
	case isForeignKeyViolation(err):
		return fmt.Errorf("failed to %s: %w", op, remote.ErrForeignKeyViolation)
	case isUniqueViolation(err):
		return fmt.Errorf("failed to %s: %w", op, remote.ErrConflict)
	case isCheckViolation(err):
		return fmt.Errorf("failed to %s: %w: %v", op, remote.ErrInvalidInput, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
