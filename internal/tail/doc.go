// Package tail is the boundary to continuously growing log sources.
//
// # Contract
//
// A Source opens a Handle for a (namespace, pod, container) triple. The
// Handle yields raw lines lazily on Lines() and closes that channel when the
// feed ends; Err() then reports why. Close releases every resource
// synchronously: once it returns, no further line is delivered for that
// handle.
//
// # Failure modes
//
// Errors returned by Open and Err are *Error values carrying a Kind:
//
//   - SourceUnavailable: the source does not exist or access is denied. Not retryable.
//   - ConnectionLost: the stream broke or never connected. Retryable.
//   - Cancelled: the caller closed the handle or cancelled the context. Terminal, never surfaced.
//
// # Kubernetes
//
// KubernetesSource tails container logs with the core/v1 pods/log
// subresource. It always requests timestamps and strips them from the line so
// entries carry the kubelet's RFC3339Nano time. Reconnects may resume with
// Options.SinceTime; the API only honours whole seconds, so a resumed tail can
// repeat lines from the boundary second.
package tail
