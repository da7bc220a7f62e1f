// Package testing provides a conformance suite for pairs of client and server
// transports. Every transport package runs it from its own tests.
package testing
