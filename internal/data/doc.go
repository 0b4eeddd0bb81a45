// Package data implements the reactive store runtime: reducer-backed stores
// whose selectors can be paired with resolvers that lazily populate state
// the first time a selector is called with a given argument tuple.
//
// # Architecture
//
// A Store combines a user reducer with the resolution metadata reducer
// (package metadata) into one composite state. Consumers only ever see the
// user part through GetState; metadata is reachable through the typed
// metadata selectors on Selectors.
//
//	Selectors().Call(name, args...)
//	  -> read current state, return immediately
//	  -> if the selector has a resolver and the key is not running/started:
//	       mark running, Scheduler.Schedule(task)
//	task:
//	  -> START_RESOLUTION, clear running flag
//	  -> Resolver.Fulfill(ctx, args...) -> dispatch returned Dispatchable
//	  -> FINISH_RESOLUTION or FAIL_RESOLUTION
//
// # Derived selector families
//
//   - ResolveSelectors: returns a *Promise settled when the resolution finishes
//   - SuspendSelectors: returns the value, the stored error, or *SuspendedError
//   - QuerySelect: {Data, Status, IsResolving, HasResolved} per selector call
//
// # Concurrency
//
// Dispatch is serialized by a store mutex. Listeners run after the mutex is
// released and fire only when the composite state changed identity.
// Resolver tasks run on the configured Scheduler; GoScheduler is the default.
//
// # Errors
//
// Resolver errors and panics never reach selector callers. They are stored
// as resolution metadata and surface through HasResolutionFailed,
// GetResolutionError, rejected promises and SuspendSelectors.
package data
