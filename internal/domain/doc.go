// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (addresses, roles, close codes, trust records) and
// contracts (store interfaces) only.
package domain
