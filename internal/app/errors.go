package app

import "errors"

// User-visible failure kinds. Messages are short and leak nothing internal.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login failures cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	ErrEmailExists   = errors.New("email already exists")
	ErrDuplicateSlug = errors.New("a category with this name already exists")
	ErrCategoryInUse = errors.New("cannot delete category linked with products")

	ErrSelfDeleteForbidden = errors.New("you cannot delete yourself")
	ErrLastAdminProtected  = errors.New("cannot delete the last admin")
)
