// Package engine provides the core types and the single-object reconciler for
// PAN-OS custom URL categories.
//
// # Overview
//
// A reconciliation brings one named custom URL category on a firewall or
// Panorama into a desired state. The workflow is strictly serial:
//
//  1. Validate - Check the DesiredState (DesiredState.Validate)
//  2. List - Fetch the objects of this kind in the parent scope (Lister)
//  3. Plan - Compare desired and observed, pick one operation (Plan)
//  4. Apply - Issue at most one mutation (Reconciler, Mutator)
//  5. Commit - Optionally commit the candidate configuration (Committer)
//
// Listing, commit and result recording are orchestrated by package runner;
// this package only decides and issues the mutation.
//
// # Core Domain Types
//
//   - CustomURLCategory: the managed object (name, url_value, type, description)
//   - DesiredState: object plus present/absent intent
//   - Scope: vsys on a firewall or device group on Panorama
//   - PlannedChange: the side-effect-free decision computed by Plan
//   - Result: changed flag, operation and Diff of one reconciliation
//
// # Comparison
//
// Two objects are equal when name, description, normalized type and the
// ordered url_value sequence all match. Reordering members is a change.
//
// # Error Classification
//
// Every failure surfaces as an *EngineError carrying one of three codes:
//
//   - INVALID_SPECIFICATION: bad caller input, detected before any device call
//   - DEVICE_COMMUNICATION: the listing fetch or the mutation failed
//   - COMMIT_FAILED: the commit failed after a successful mutation
//
// Errors are additionally classified transient or permanent. Nothing in this
// package retries.
//
// # Usage
//
//	observed, err := session.List(ctx)
//	if err != nil {
//	    return engine.NewDeviceCommunicationError("listing failed", err)
//	}
//	result, err := engine.NewReconciler(session).Reconcile(ctx, desired, observed)
package engine
