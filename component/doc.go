// Package component defines lifecycle-managed instances and the registry
// that starts and stops them.
//
// An injector registers every singleton it created that implements
// Component, then starts them in registration order and stops them in
// reverse order.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: startup summary descriptions
package component
