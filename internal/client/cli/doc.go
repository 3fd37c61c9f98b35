// Package cli provides the interactive ScanPass command-line client.
//
// It wires configuration and the HTTP API client into a small REPL. A
// typical session registers or logs in with a password, enrolls an object
// from a recorded video file, then answers motion challenges with
// "authenticate" to unlock the protected resource.
//
// Key features:
//   - Password register / login / logout
//   - Visual-only register and login
//   - Enroll, authenticate and revoke the visual key
//   - Fetch the protected demo resource
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
