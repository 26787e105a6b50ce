// Package runner locates the automation program, spawns it, and
// supervises the resulting process.
//
// The launch contract is deliberately small: the child receives the
// composed environment appended after the parent's own, its configured
// argument list, and exactly one extra positional argument — the job
// name. The launcher blocks until the child exits and reports the exit
// status verbatim; it never interprets what the automation module did.
//
// Finder discovers the Python interpreter (or an explicitly configured
// program) with priority-ordered path checking. Launch runs one child to
// completion with output teeing and a bounded tail capture for the run
// history. Supervisor wraps Launch with failure-triggered restarts and
// watch-mode restarts on profile changes.
package runner
