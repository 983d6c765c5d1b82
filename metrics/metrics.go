package metrics

import (
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrDelphi/NoLossLottery/data"
)

const namespace = "lottery"

// Collector turns engine notifications into prometheus series
type Collector struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	entries      prometheus.Counter
	withdrawals  prometheus.Counter
	transitions  *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	winners      prometheus.Counter
	lastPrize    prometheus.Gauge
	round        prometheus.Gauge
	state        prometheus.Gauge
	tickets      prometheus.Gauge
	participants prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by name and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent executing engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Tickets bought.",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Participants that withdrew their principal.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by path.",
		}, []string{"path"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upkeep_rejected_total",
			Help:      "Transition triggers whose guard did not hold.",
		}, []string{"path"}),
		winners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_total",
			Help:      "Rounds settled with a winner.",
		}),
		lastPrize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_prize",
			Help:      "Prize of the last settled round in stablecoin base units.",
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round",
			Help:      "Current round number.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current state, 0 open to play, 1 locking, 2 computing payout, 3 open to withdraw.",
		}),
		tickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tickets",
			Help:      "Active tickets.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "draw_entries",
			Help:      "Entries in the current draw list.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.operations, c.duration, c.entries, c.withdrawals, c.transitions, c.rejected,
		c.winners, c.lastPrize, c.round, c.state, c.tickets, c.participants,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (c *Collector) OperationDone(op string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.operations.WithLabelValues(op, result).Inc()
	c.duration.WithLabelValues(op).Observe(took.Seconds())
}

func (c *Collector) Entered(string) {
	c.entries.Inc()
}

func (c *Collector) Withdrew(string, *uint256.Int) {
	c.withdrawals.Inc()
}

func (c *Collector) Transitioned(path data.PathID, _, _ data.State) {
	c.transitions.WithLabelValues(string(path)).Inc()
}

func (c *Collector) UpkeepRejected(path data.PathID) {
	c.rejected.WithLabelValues(string(path)).Inc()
}

func (c *Collector) WinnerPaid(winner data.Winner) {
	c.winners.Inc()
	c.lastPrize.Set(toFloat(winner.Prize))
}

func (c *Collector) RoundUpdated(round uint64, state data.State, totalTickets uint64, participants int) {
	c.round.Set(float64(round))
	c.state.Set(float64(state))
	c.tickets.Set(float64(totalTickets))
	c.participants.Set(float64(participants))
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()

	return f
}
