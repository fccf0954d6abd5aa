// Package dispatch coordinates a three-phase operation (pre-dispatch,
// dispatch, post-dispatch) either as a plain awaitable chain (Run, Go) or as
// an observable state machine (Machine) whose dispatch state other
// components can watch and drive.
//
// A Machine moves through None -> Dispatching -> Dispatched -> None. Entering
// Dispatching is a trigger: the phases run on the machine's worker, and on
// success the machine publishes Dispatched with the final value before
// returning to None. Failure, cancellation and ResetDispatchState always put
// the machine back to None before the error is surfaced.
//
// Only one run is active per machine. A trigger that arrives while a run is
// in flight is rejected (PolicyReject, the default) or deferred until the
// machine is idle again (PolicyQueue).
package dispatch
