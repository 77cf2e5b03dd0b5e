package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		flowEventsTotal,
		flowTransitionsTotal,
		flowValidationFailuresTotal,
		flowPanicsTotal,
		conversationsExpiredTotal,
		gatewayDeliveryFailuresTotal,
	)
}

var (
	flowEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_events_total",
			Help: "Inbound chat events by kind (text/button/file/session_start).",
		},
		[]string{"kind"},
	)

	flowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_transitions_total",
			Help: "Conversation state changes by source and target state.",
		},
		[]string{"from", "to"},
	)

	flowValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_validation_failures_total",
			Help: "Inputs rejected with a re-prompt, by problem.",
		},
		[]string{"problem"},
	)

	flowPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flow_panics_total",
			Help: "Units of work aborted by a recovered panic.",
		},
	)

	conversationsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_expired_total",
			Help: "Idle conversation records removed by the sweeper.",
		},
	)

	// op: send|edit|forward|notify
	gatewayDeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_delivery_failures_total",
			Help: "Messaging gateway calls that failed, by operation.",
		},
		[]string{"op"},
	)
)

func IncFlowEvent(kind string) {
	flowEventsTotal.WithLabelValues(norm(kind)).Inc()
}

func IncTransition(from, to string) {
	flowTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncValidationFailure(problem string) {
	flowValidationFailuresTotal.WithLabelValues(norm(problem)).Inc()
}

func IncFlowPanic() {
	flowPanicsTotal.Inc()
}

func AddConversationsExpired(n int) {
	conversationsExpiredTotal.Add(float64(n))
}

func IncDeliveryFailure(op string) {
	gatewayDeliveryFailuresTotal.WithLabelValues(norm(op)).Inc()
}
