// Package api serves the kubelogx HTTP surface: directory listings, the
// live log stream over Server-Sent Events, session inspection, log analysis,
// health checks and Prometheus metrics.
package api
