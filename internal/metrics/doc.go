// Package metrics implements the view metric trackers the scope tree notifies
// at defined lifecycle points:
//
//   - TNS (Time-to-Network-Settled): how long the initial resources of a view
//     take to complete.
//   - INV (Interaction-to-Next-View): time between the last qualifying action
//     of a view and the start of the next one.
//   - Hitches: slow frames reported by the host while a view is visible.
//
// Trackers only derive durations; the scopes embed them into view events.
package metrics
