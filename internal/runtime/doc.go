// Package runtime owns the thread lifecycle surface.
//
// Ownership boundary:
// - start / sleep / yield / current-thread / join entry points
// - process init (main-thread identity) and shutdown drain
//
// The runtime does not allocate managed objects and does not dispatch
// managed calls; both cross the objectmodel boundary. Failures surface as
// sentinel errors or boolean results, never as panics.
package runtime
