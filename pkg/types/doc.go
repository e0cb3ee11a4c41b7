// Package types defines the table schemas, row values, borrowing records,
// configuration and standard errors shared by the libpanel packages.
package types
