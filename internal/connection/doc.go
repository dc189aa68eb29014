// Package connection maintains the single real-time feed connection.
//
// The Manager:
//   - Owns at most one live WebSocket client at a time
//   - Drives the Idle/Connecting/Open/Closing/Closed state machine
//   - Decodes inbound frames and broadcasts events to registered listeners
//   - Schedules fixed-delay reconnects after failures until the attempt
//     budget is exhausted
package connection
