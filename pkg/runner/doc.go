// Package runner executes urlcat invocations against a device.
//
// One invocation is strictly serial: validate the desired state, evaluate
// guard-rail policies, open a session, fetch the listing once, reconcile
// (zero or one mutation), commit when requested and something changed, and
// record the outcome in the history store. Nothing is retried.
//
// A failed commit returns a CommitError together with a report whose Changed
// field is still true; the mutation stays in the candidate configuration.
//
// Watch re-runs the invocation when its config file or policy directory
// changes. Runs never overlap.
package runner
