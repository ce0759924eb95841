// Package cmdline runs external commands on local and remote machines
// and reports their output as a typed result.
package cmdline

// Version is the cmdline release version.
const Version = "v0.1.0"
