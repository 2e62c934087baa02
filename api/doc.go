// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the shared contract between the chatserver core and
// its consumers: the Event values produced by the server's accept loop and
// the sentinel errors returned by the public API.
//
// The package is intentionally dependency-free; the server and chat
// packages import it.
package api
