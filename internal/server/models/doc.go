// Package models defines server-side data models persisted in the database
// or derived per request.
package models
