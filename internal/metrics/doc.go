// Package metrics renders the node's grid view as Prometheus text
// exposition for the token-gated metrics endpoint. Families are built
// directly as client_model gauges and encoded with expfmt; there is no
// registry since every value derives from one snapshot.
package metrics
