// Package validation composes declarative rule chains for form fields,
// evaluates them and defines the error shapes the save pipeline reports.
package validation
