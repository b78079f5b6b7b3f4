// Package metrics exposes the navaar_* Prometheus collectors scraped
// from the daemon's /metrics endpoint. The vocabulary and label shapes
// match the prior metrics module so existing dashboards and alert
// rules keep working.
package metrics
