// Package logger builds the process zap.Logger from configuration.
package logger
