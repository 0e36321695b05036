// Package errors provides the structured error types of the injector.
//
// Configuration problems found while an injector is created are gathered by a
// Collector and surface as a single CreationError. Failures while producing an
// instance surface as a ProvisionError that carries one ordered trace of the
// injection sites involved plus the underlying causes.
package errors
