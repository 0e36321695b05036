// Package validation validates configuration structs with struct tags using
// go-playground/validator.
//
//	type Config struct {
//	    Stage  string   `mapstructure:"stage" validate:"omitempty,oneof=development production"`
//	    Scopes []string `mapstructure:"scopes" validate:"dive,annotation"`
//	}
//	err := validation.Validate(cfg)
//
// Failures are returned as *errors.AppError with code INVALID_INPUT and a
// "fields" detail listing every offending field.
package validation
