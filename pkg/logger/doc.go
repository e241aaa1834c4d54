// Package logger builds log/slog loggers for the service.
//
// New applies functional options on top of production defaults (JSON, info
// level, stdout). WithEnvironment switches to text output at debug level
// outside production and staging. Context extractors, such as the ones exported
// by the requestid and environment packages, add request-scoped attributes
// at log time through LogHandlerDecorator.
//
// Libraries in this module take a *slog.Logger through their options and fall
// back to Discard when none is given.
package logger
