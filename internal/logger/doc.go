// Package logger wraps zap with a global sugared logger, context helpers
// (ToContext/FromContext/WithName/WithKV/WithFields) and a shared level
// switch driven by the --log-level flag.
//
// Log output goes to stderr; stdout is reserved for command results.
package logger
