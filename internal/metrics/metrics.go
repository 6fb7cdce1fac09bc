package metrics

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/gridwatch/gridwatch/internal/health"
)

// ContentType is the value served alongside the rendered exposition.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Render writes the grid view as Prometheus text exposition.
func Render(w io.Writer, snap health.GridSnapshot, node, version string) error {
	families := []*dto.MetricFamily{
		gauge("gridwatch_build_info",
			"Identity of this gridwatch node.",
			point(1, label("node", node), label("version", version))),
		gauge("gridwatch_grid_peers",
			"Grid members by health status, as seen from this node.",
			point(float64(snap.Alive), label("status", "alive")),
			point(float64(snap.Dying), label("status", "dying")),
			point(float64(snap.Dead), label("status", "dead"))),
		gauge("gridwatch_grid_size",
			"Total grid membership, this node included.",
			point(float64(snap.Total))),
	}

	up := make([]*dto.Metric, 0, len(snap.Nodes))
	lastOK := make([]*dto.Metric, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		var alive float64
		if n.Status == health.StatusAlive {
			alive = 1
		}
		up = append(up, point(alive, label("peer", n.Name)))

		var ts float64
		if !n.LastSuccess.IsZero() {
			ts = float64(n.LastSuccess.Unix())
		}
		lastOK = append(lastOK, point(ts, label("peer", n.Name)))
	}
	families = append(families,
		gauge("gridwatch_peer_up",
			"Whether this node currently considers the peer alive.",
			up...),
		gauge("gridwatch_peer_last_success_timestamp_seconds",
			"Unix time of the peer's last successful probe, 0 when never probed.",
			lastOK...),
	)

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// gauge assembles one gauge family.
func gauge(name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: ms,
	}
}

// point assembles one gauge sample with its labels.
func point(value float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(value)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
