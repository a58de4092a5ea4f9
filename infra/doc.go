// Package infra holds the technical adapters around the engine:
// structured logging, Prometheus and InfluxDB sinks, and the MQTT
// notifier. Adapters depend only on interfaces from the core packages
// so the engine stays testable without any of them.
package infra
