// Package calendar wraps the Google Calendar API for event management and
// availability queries.
package calendar
