// Package preflight provides readiness checks for the vault and the external
// commands and services configured processors depend on.
//
// The CLI "check" command runs RunAll and prints every result; "run" and
// "watch" run the same checks and refuse to start when the vault itself is
// not accessible. Disabled processors are skipped.
package preflight
