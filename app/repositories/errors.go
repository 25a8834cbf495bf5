package repositories

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/jmgilman/go/errors"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/models"
)

// NotFoundError reports that no product exists under id.
func NotFoundError(id uint) error {
	return errors.WithContext(errors.Newf(errors.CodeNotFound, "product %d not found", id), "id", id)
}

// DuplicateKeyError reports that name collides with an existing product.
func DuplicateKeyError(name string) error {
	return errors.WithContext(errors.Newf(errors.CodeAlreadyExists, "a product named %q already exists", name), "name", name)
}

// NameInUseError is a DuplicateKeyError naming the product that holds name.
func NameInUseError(name string, existingID uint) error {
	return errors.WithContext(DuplicateKeyError(name), "existing_id", existingID)
}

// VersionConflictError describes a rejected update. current is the
// authoritative record the caller must reconcile against.
func VersionConflictError(current models.Product) error {
	return errors.WithContextMap(
		errors.Newf(errors.CodeConflict, "product %d was modified by another request", current.ID),
		map[string]interface{}{
			"id":              current.ID,
			"current_version": current.Version.String(),
		},
	)
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return errors.GetCode(err) == errors.CodeNotFound }

// IsDuplicateKey reports whether err carries CodeAlreadyExists.
func IsDuplicateKey(err error) bool { return errors.GetCode(err) == errors.CodeAlreadyExists }

// storeError classifies a driver error for op. Unique-index violations become
// DuplicateKey, cancellation becomes a retryable timeout, other constraint
// violations are permanent internal failures and everything else is treated
// as the store being unavailable.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pe errors.PlatformError
	if stderrors.As(err, &pe) {
		return err
	}

	switch {
	case isUniqueViolation(err):
		return errors.Wrap(err, errors.CodeAlreadyExists, "a product with this name already exists")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrapf(err, errors.CodeTimeout, "store %s interrupted", op)
	case strings.Contains(strings.ToLower(err.Error()), "constraint"):
		return errors.Wrapf(err, errors.CodeInternal, "store %s violated a constraint", op)
	default:
		return errors.Wrapf(err, errors.CodeUnavailable, "store %s failed", op)
	}
}

// isUniqueViolation recognizes duplicate-key errors from every supported
// driver, translated or not.
func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unique constraint failed",    // sqlite
		"duplicate key value",         // postgres
		"duplicate entry",             // mysql
		"cannot insert duplicate key", // sqlserver
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
