// Package wire defines the JSON types exchanged between grid members and
// served to dashboards. Every gridwatch node speaks exactly this contract,
// so the types live outside internal packages.
package wire
