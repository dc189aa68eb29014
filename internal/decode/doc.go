// Package decode turns raw feed frames into events.
//
// Every inbound frame carries exactly one JSON object. Anything else is
// reported as a *DecodeError that keeps the offending bytes for diagnostics;
// the decoder never panics and never affects the connection.
package decode
