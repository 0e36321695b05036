// Package logger provides structured logging for the injector using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("di")
//	log.Info("injector created", logger.Fields(logger.FieldBindings, 12))
package logger
