package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/ledgerstore/internal/domain/shared"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// translate maps driver and GORM errors onto domain errors. Domain errors
// pass through unchanged.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	var ce *shared.ConflictError
	if errors.As(err, &ce) {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return shared.WrapDomainError(shared.CodeStoreIO, entity+": store is locked by another writer", err)
		case se.ExtendedCode == sqlite3.ErrConstraintCheck || se.ExtendedCode == sqlite3.ErrConstraintNotNull:
			return shared.WrapDomainError(shared.CodeInvalidInput, entity+" violates a column constraint", err)
		}
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewDomainError(shared.CodeNotFound, entity+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapDomainError(shared.CodeDuplicateName,
			entity+" with this name already exists in the workspace", err)
	default:
		return storeIO(entity, err)
	}
}

func storeIO(op string, err error) error {
	return shared.WrapDomainError(shared.CodeStoreIO, fmt.Sprintf("%s: storage failure", op), err)
}
