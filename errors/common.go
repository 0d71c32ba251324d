package errors

import "fmt"

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func InvalidBodyErr(err error) error {
	return E(Invalid, "invalid request body", err)
}

func ValidationFailedErr(err error) error {
	return E(Invalid, "validation failed", err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return E(Invalid, "validation failed", ve.Err())
}

// NotFoundErr returns a formatted error for a missing record
func NotFoundErr(entity, key string) error {
	return E(NotFound, fmt.Sprintf("%s not found for %s", entity, key), nil)
}

// DuplicateKeyErr is returned by stores when a unique key is already taken
func DuplicateKeyErr(collection string, err error) error {
	return E(Conflict, fmt.Sprintf("duplicate key in %s", collection), err)
}

// PersistenceErr wraps a store failure
func PersistenceErr(op string, err error) error {
	return E(Internal, fmt.Sprintf("%s failed", op), err)
}
