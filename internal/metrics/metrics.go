package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APICalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_api_calls_total",
		Help: "Outbound calls to the X API by endpoint",
	}, []string{"endpoint"})
	APICallsUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokewatch_api_calls_used",
		Help: "Calls counted against the advisory X API quota",
	})
	APIErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_api_errors_total",
		Help: "X API failures by kind",
	}, []string{"kind"})
	ReminderChecks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokewatch_reminder_checks_total",
		Help: "Reminder check passes",
	})
	RemindersFired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokewatch_reminders_fired_total",
		Help: "Reminders delivered because the goal was not met",
	})
	ReminderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokewatch_reminder_errors_total",
		Help: "Due reminder entries that failed to evaluate",
	})
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_deliveries_total",
		Help: "Poke deliveries by result",
	}, []string{"result"})
	ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_tool_calls_total",
		Help: "MCP tool invocations",
	}, []string{"tool", "success"})
	DailyReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_daily_reports_total",
		Help: "Daily report runs by result",
	}, []string{"result"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_command_runs_total",
		Help: "CLI command runs",
	}, []string{"cmd"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pokewatch_command_errors_total",
		Help: "CLI command failures",
	}, []string{"cmd"})
)

func init() {
	prometheus.MustRegister(APICalls, APICallsUsed, APIErrors, ReminderChecks, RemindersFired,
		ReminderErrors, Deliveries, ToolCalls, DailyReports, CommandRuns, CommandErrors)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// IncAPICall counts one outbound X API call and publishes the running total.
func IncAPICall(endpoint string, used int) {
	APICalls.WithLabelValues(endpoint).Inc()
	APICallsUsed.Set(float64(used))
}

// IncAPIError increments the failure counter for kind.
func IncAPIError(kind string) { APIErrors.WithLabelValues(kind).Inc() }

// IncDelivery records one Poke delivery outcome ("ok" or "error").
func IncDelivery(result string) { Deliveries.WithLabelValues(result).Inc() }

// IncToolCall records an MCP tool invocation.
func IncToolCall(tool string, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	ToolCalls.WithLabelValues(tool, s).Inc()
}

// IncDailyReport records one daily report run ("ok" or "error").
func IncDailyReport(result string) { DailyReports.WithLabelValues(result).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
