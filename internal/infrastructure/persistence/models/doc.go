// Package models contains the GORM models of the master catalog. Domain
// types stay free of persistence tags; each model converts to and from its
// domain counterpart.
package models
