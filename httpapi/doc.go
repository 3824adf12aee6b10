// Package httpapi exposes the phonebook engine and the contacts service
// over HTTP using gin.
//
// Routes live under /api/users and /api/contacts. Guarded routes go through
// middleware.GinGuard; every error is translated to a status code and a
// {"message": ...} body by writeError, so handlers never pick statuses for
// engine failures themselves.
package httpapi
