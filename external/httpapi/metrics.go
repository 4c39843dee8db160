package httpapi

import (
	"github.com/foxseedlab/roomcall/internal/receiver"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "roomcall"

func newRegistry(ctrl Controller) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		gauge("mixer_active_inputs", "Mixer input slots currently held.", func() float64 {
			return float64(ctrl.Status().ActiveInputs)
		}),
		gauge("rooms_joined", "Rooms currently received.", func() float64 {
			return float64(len(ctrl.Status().Rooms))
		}),
		gauge("unicast_linked", "1 when a unicast sender is linked to the mixer.", func() float64 {
			if u := ctrl.Status().Unicast; u != nil && u.Linked {
				return 1
			}
			return 0
		}),
		counter(ctrl, "rtp_packets_received_total", "Datagrams read from receive sockets.", func(s receiver.StatsSnapshot) int64 {
			return s.PacketsReceived
		}),
		counter(ctrl, "unicast_senders_discovered_total", "Unicast senders linked after discovery.", func(s receiver.StatsSnapshot) int64 {
			return s.SendersDiscovered
		}),
		counter(ctrl, "rtp_decode_errors_total", "Payloads the decoder rejected.", func(s receiver.StatsSnapshot) int64 {
			return s.DecodeErrors
		}),
	)
	for reason, pick := range map[string]func(receiver.StatsSnapshot) int64{
		"not_rtp":      func(s receiver.StatsSnapshot) int64 { return s.DroppedNotRTP },
		"payload_type": func(s receiver.StatsSnapshot) int64 { return s.DroppedPayloadType },
		"excluded":     func(s receiver.StatsSnapshot) int64 { return s.DroppedExcluded },
		"rejected":     func(s receiver.StatsSnapshot) int64 { return s.DroppedRejected },
		"unlinked":     func(s receiver.StatsSnapshot) int64 { return s.DroppedUnlinked },
	} {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "rtp_packets_dropped_total",
			Help:        "Datagrams dropped before reaching the mixer, by reason.",
			ConstLabels: prometheus.Labels{"reason": reason},
		}, func() float64 {
			return float64(pick(ctrl.Status().Stats))
		}))
	}
	return reg
}

func gauge(name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, fn)
}

func counter(ctrl Controller, name, help string, pick func(receiver.StatsSnapshot) int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(pick(ctrl.Status().Stats))
	})
}
