// Package logger is a standardized event logging framework for the shell.
//
// Events are written as newline delimited JSON so sessions can be summarized
// after the fact with "pipesh events report".
package logger
