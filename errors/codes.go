package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors, reported while an injector is created.
const (
	// ErrCodeConfiguration is a generic configuration problem.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeDuplicateBinding indicates a key was bound more than once.
	ErrCodeDuplicateBinding ErrorCode = "DUPLICATE_BINDING"
	// ErrCodeMissingBinding indicates a required key has no binding.
	ErrCodeMissingBinding ErrorCode = "MISSING_BINDING"
	// ErrCodeInvalidConstructor indicates a function cannot be used as a constructor, provider or setter.
	ErrCodeInvalidConstructor ErrorCode = "INVALID_CONSTRUCTOR"
	// ErrCodeScopeConflict indicates contradictory scoping on one binding.
	ErrCodeScopeConflict ErrorCode = "SCOPE_CONFLICT"
	// ErrCodeScopeNotFound indicates a scope annotation with no bound scope.
	ErrCodeScopeNotFound ErrorCode = "SCOPE_NOT_FOUND"
	// ErrCodeIncompatibleErrors indicates a producer declares errors its consumer does not tolerate.
	ErrCodeIncompatibleErrors ErrorCode = "INCOMPATIBLE_DECLARED_ERRORS"
	// ErrCodeInterception indicates an aspect that cannot be woven.
	ErrCodeInterception ErrorCode = "INTERCEPTION_ERROR"
)

// Provisioning errors, reported while an instance is produced.
const (
	// ErrCodeProvision indicates a constructor, provider or setter failed.
	ErrCodeProvision ErrorCode = "PROVISION_ERROR"
	// ErrCodeCircularDependency indicates a cycle that no stand-in can break.
	ErrCodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	// ErrCodeNotYetConstructed indicates a stand-in was used before its instance existed.
	ErrCodeNotYetConstructed ErrorCode = "NOT_YET_CONSTRUCTED"
	// ErrCodeOutOfScope indicates a scoped key was requested outside an active scope.
	ErrCodeOutOfScope ErrorCode = "OUT_OF_SCOPE"
	// ErrCodeInvalidBinding indicates a binding disabled by configuration errors.
	ErrCodeInvalidBinding ErrorCode = "INVALID_BINDING"
)

// General errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// IsConfigurationCode reports whether code is raised while an injector is created.
func IsConfigurationCode(code ErrorCode) bool {
	switch code {
	case ErrCodeConfiguration, ErrCodeDuplicateBinding, ErrCodeMissingBinding,
		ErrCodeInvalidConstructor, ErrCodeScopeConflict, ErrCodeScopeNotFound,
		ErrCodeIncompatibleErrors, ErrCodeInterception:
		return true
	}
	return false
}
