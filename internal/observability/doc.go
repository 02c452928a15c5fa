// Package observability provides structured logging and best-effort usage
// recording for Critical Claude. Recording failures never reach the command
// being measured.
package observability
