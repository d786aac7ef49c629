// Package sim provides an in-memory call.Platform that records every
// outbound signaling message, host notification and group call request.
// It backs deterministic tests of the call state machine and can inject
// connection creation and send failures.
package sim
