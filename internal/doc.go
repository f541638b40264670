// Package internal contains the core implementation packages for stasis.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the stasis CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Full and incremental builds of a source tree into an output tree
//   - config: Configuration loading and validation through viper
//   - errors: Typed errors with POSIX error codes
//   - inject: Streaming insertion of markup after an anchor
//   - logging: Structured logging on log/slog
//   - mimetype: Extension to MIME type lookup
//   - reload: WebSocket fan-out of reload notifications
//   - render: Frontmatter, layouts and drafts for HTML pages
//   - server: Static file handler and the development server
//   - taskqueue: Bounded worker pool with LIFO or FIFO scheduling
//   - validation: Checks for user-supplied paths, hosts and URLs
//   - version: Build metadata
//   - watcher: Polling change detection by modification time
//
// # Data Flow
//
// The development loop wires the packages together:
//
//   - Watcher compares snapshots and yields one batch of events per poll
//   - Build turns each batch into jobs on the task queue and reports the
//     output paths it changed
//   - Server broadcasts those paths through the reload hub, and pages
//     without a socket notice the change by polling with If-Modified-Since
//
// # Testing Strategy
//
// Each package carries unit tests built on testify. Property tests use
// gopter and run with the property build tag:
//
//	go test -tags property ./...
package internal
