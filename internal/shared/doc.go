// Package shared holds helpers used by more than one chemvis package.
//
// The testutil subpackage provides a log-capturing slog handler and dataset
// fixtures (CSV documents and summaries) for package tests. It must not
// import any chemvis package other than pkg/contracts.
package shared
