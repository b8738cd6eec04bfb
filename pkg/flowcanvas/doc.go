// Package flowcanvas provides a public façade for building, editing and
// executing workflow graphs without importing internal packages. It
// re-exports the core graph types and exposes a Runtime that wires the
// workspace, the execution engine and the configured stores.
package flowcanvas
