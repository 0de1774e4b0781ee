// Package testing provides testing utilities for the identity HTTP transport.
//
// # Mocks
//
// The mocks subpackage provides scripted implementations of the transport seams:
//   - MockConnection, a single-use http.Connection with a recorded call journal
//   - ConnectionQueue, an http.ConnectionFactory serving queued connections in order
//   - MockConnectionFactory, a testify-based factory for Open failures
//
// # Fixtures
//
// The fixtures subpackage provides pre-built queues for common scenarios:
// transient service failures, socket timeouts and token endpoint payloads.
//
// # Usage
//
//	import (
//		"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/mocks"
//		"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/fixtures"
//	)
package testing
