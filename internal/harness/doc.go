// Package harness runs conformance scenarios against the entity store.
//
// Each scenario gets a fresh registry with a manual scheduler and a fake
// REST fetcher, so resolvers only run when a step ticks and every run
// yields the same trace.
//
// # Scenario Format
//
//	name: list_marks_records_resolved
//	description: "A list fetch finishes the per-record resolutions"
//	entities: entities.cue        # optional, default table otherwise
//	fixtures:
//	  - route: GET /wp/v2/users
//	    body: [{id: 1, name: Ada}]
//	  - route: GET /wp/v2/users/9
//	    error: rest_user_invalid_id
//	    status: 404
//	steps:
//	  - select: getEntityRecords
//	    args: [root, user]
//	    expect: {nil: true}
//	  - flush: true
//	  - resolve: getEntityRecord
//	    args: [root, user, 1]
//	    expect: {value: {name: Ada}}
//	  - dispatch: saveEntityRecord
//	    args: [root, user, {name: Grace}]
//	assertions:
//	  - type: fetch_count
//	    route: GET /wp/v2/users
//	    count: 1
//	  - type: resolution
//	    selector: getEntityRecord
//	    args: [root, user, 1]
//	    status: finished
//	  - type: expr
//	    expr: 'len(select("getEntityRecords", "root", "user")) == 1'
//
// # Assertion Types
//
//   - trace_contains: an action (optionally for a selector) was dispatched
//   - trace_order: actions first occur in the given order
//   - trace_count: an action was dispatched exactly N times
//   - fetch_count: a route was requested exactly N times
//   - resolution: the metadata status of a selector call
//   - expr: a boolean expr-lang expression over the store
//
// # Golden Traces
//
// The trace lists steps and dispatched actions with sequence numbers from
// testutil.DeterministicClock. Snapshot renders it as canonical JSON for
// golden comparison with goldie in tests or CompareGolden from the CLI.
package harness
