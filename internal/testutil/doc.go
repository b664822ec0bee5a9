// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when seeding session stores, scripting model deltas
// and asserting event streams. They are not intended for production usage.
package testutil
