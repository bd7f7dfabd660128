// Package callback is the call boundary into the host.
//
// Every interaction with the host goes through one synchronous entry point
// that takes a function number, an array of argument record addresses and
// the address of a result record, and returns a status code. Boundary wraps
// that entry point: it enforces the argument limit, logs failed calls and
// marks string, reference and array results as host-owned so that
// destroying them calls xlFree.
//
// The helpers on Boundary cover the callback-only functions an add-in
// typically needs. Each builds temporary records, calls the host and
// releases everything again before returning a plain Go value.
package callback
