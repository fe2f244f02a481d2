// Package rate counts failed logins in Redis and refuses further attempts once
// a fixed-window budget is spent.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys:
//   - <prefix>:e:<email> per email
//   - <prefix>:ip:<addr> per client IP (only when PerIP is set)
//
// A successful password check deletes both counters.
package rate
