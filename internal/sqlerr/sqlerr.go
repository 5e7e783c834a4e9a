// Package sqlerr translates PostgreSQL driver errors into API errors.
//
// A unique violation on owners.email becomes a 400 "An owner with this Email
// already exists", a missing row becomes a 404, and anything unexpected
// becomes a generic 500.
package sqlerr
