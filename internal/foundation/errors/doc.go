// Package errors classifies deckbuilder failures by category and severity,
// and maps them to CLI exit codes and HTTP responses.
package errors
