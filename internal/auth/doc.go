// Package auth checks the shared API key of the command surfaces against a
// bcrypt hash stored in the configuration.
package auth
