// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into a Config and runs the selected command against
// the cpod library.
package cli
