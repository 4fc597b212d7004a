// Package errors provides the classified error primitives used across shadowjar.
//
// Every package declares its failure modes as sentinel ClassifiedError values
// built with the fluent ErrorBuilder. Call sites attach context (flavor,
// version, exit code, captured output) with WithContext, which keeps the
// category and message so errors.Is still matches the sentinel.
//
//	err := ErrNonZeroExit.
//		WithContext("exit_code", 1).
//		WithContext("stderr", stderr)
//	errors.Is(err, ErrNonZeroExit) // true
//
// The CLI and HTTP adapters turn classified errors into exit codes and JSON
// error payloads respectively.
package errors
