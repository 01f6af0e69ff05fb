// Package flows holds the request orchestration behind every engine
// operation: login, refresh, validate and logout.
//
// Each Run function takes a dependency struct and returns a tagged result
// whose Failure field classifies what went wrong. The engine maps failure
// kinds to its public error taxonomy, metrics and audit events; flows
// themselves never decide wire status codes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency interfaces.
package flows
