// Package client wraps a control connection for short-lived order creators
// and event observers, as used by the igor CLI.
package client
