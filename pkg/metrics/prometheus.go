// Package metrics provides Prometheus metrics for the patpat haptic engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Control loop
	ticks        prometheus.Counter
	slowTicks    prometheus.Counter
	tickDuration prometheus.Histogram
	currentTPS   prometheus.Gauge
	transmission prometheus.Gauge

	// Solving and mapping
	solves      *prometheus.CounterVec
	groupFresh  *prometheus.GaugeVec
	groupSkips  *prometheus.CounterVec
	motorOutput *prometheus.GaugeVec

	// Telemetry receiver
	samplesReceived prometheus.Counter
	samplesDropped  *prometheus.CounterVec
	receiverActive  prometheus.Gauge

	// Devices
	framesSent          *prometheus.CounterVec
	frameErrors         *prometheus.CounterVec
	heartbeatsAccepted  *prometheus.CounterVec
	heartbeatsRejected  *prometheus.CounterVec
	deviceConnected     *prometheus.GaugeVec
	deviceBattery       *prometheus.GaugeVec
	deviceRSSI          *prometheus.GaugeVec
	malformedFrames     *prometheus.CounterVec
	discoveryLookups    *prometheus.CounterVec
	discoveryRebindings *prometheus.CounterVec

	// Notification queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	listenerLatency    prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "patpat",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.ticks = m.counter("ticks_total", "Total number of control loop ticks")
	m.slowTicks = m.counter("slow_ticks_total", "Ticks whose processing exceeded the tick budget")
	m.tickDuration = m.histogram("tick_duration_milliseconds", "Control loop tick processing time in milliseconds")
	m.currentTPS = m.gauge("ticks_per_second", "Ticks completed during the last second")
	m.transmission = m.gauge("transmission_enabled", "1 when motor frames are being transmitted")

	m.solves = m.counterVec("solves_total", "Solver invocations by group and outcome", "group", "result")
	m.groupFresh = m.gaugeVec("group_fresh", "1 when every contact point of the group is fresh", "group")
	m.groupSkips = m.counterVec("group_skips_total", "Ticks on which a group was not solved", "group", "reason")
	m.motorOutput = m.gaugeVec("motor_output", "Last PWM value written to a motor channel", "device", "channel")

	m.samplesReceived = m.counter("samples_received_total", "Contact samples accepted by the telemetry receiver")
	m.samplesDropped = m.counterVec("samples_dropped_total", "Telemetry messages dropped by the receiver", "reason")
	m.receiverActive = m.gauge("receiver_active", "1 while telemetry arrived within the activity window")

	m.framesSent = m.counterVec("frames_sent_total", "Motor frames handed to a transport", "device")
	m.frameErrors = m.counterVec("frame_errors_total", "Motor frames that failed to send", "device")
	m.heartbeatsAccepted = m.counterVec("heartbeats_accepted_total", "Heartbeats accepted per device", "device")
	m.heartbeatsRejected = m.counterVec("heartbeats_rejected_total", "Heartbeats rejected per device", "device")
	m.deviceConnected = m.gaugeVec("device_connected", "1 while the device is connected", "device")
	m.deviceBattery = m.gaugeVec("device_battery_voltage", "Battery voltage reported in the last heartbeat", "device")
	m.deviceRSSI = m.gaugeVec("device_rssi", "Wireless signal strength reported in the last heartbeat", "device")
	m.malformedFrames = m.counterVec("malformed_frames_total", "Inbound frames that could not be decoded", "transport")
	m.discoveryLookups = m.counterVec("discovery_lookups_total", "Service discovery lookups by device and outcome", "device", "result")
	m.discoveryRebindings = m.counterVec("discovery_rebindings_total", "Address changes written by discovery", "device")

	m.queueSize = m.gauge("notify_queue_size", "Current size of the notification queue")
	m.queueCapacity = m.gauge("notify_queue_capacity", "Capacity of the notification queue")
	m.queueEnqueued = m.counter("notify_enqueued_total", "Notifications enqueued")
	m.queueDequeued = m.counter("notify_dequeued_total", "Notifications delivered to listeners")
	m.queueEnqueueErrors = m.counterVec("notify_enqueue_errors_total", "Notifications dropped on enqueue", "reason")
	m.listenerLatency = m.histogram("notify_listener_latency_milliseconds", "Time spent delivering one notification")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Control loop.

// RecordTick records one completed tick and its processing time.
func RecordTick(durationMs float64) {
	globalManager.ticks.Inc()
	globalManager.tickDuration.Observe(durationMs)
}

// RecordSlowTick counts a tick that overran its budget.
func RecordSlowTick() {
	globalManager.slowTicks.Inc()
}

// UpdateTicksPerSecond sets the measured tick rate.
func UpdateTicksPerSecond(tps int) {
	globalManager.currentTPS.Set(float64(tps))
}

// UpdateTransmissionEnabled reflects the transmission toggle.
func UpdateTransmissionEnabled(enabled bool) {
	globalManager.transmission.Set(boolGauge(enabled))
}

// Solving and mapping.

// RecordSolve counts one solver outcome for a group ("point", "vector", "none" or an error kind).
func RecordSolve(group, result string) {
	globalManager.solves.WithLabelValues(group, result).Inc()
}

// UpdateGroupFresh records the freshness of a group.
func UpdateGroupFresh(group string, fresh bool) {
	globalManager.groupFresh.WithLabelValues(group).Set(boolGauge(fresh))
}

// RecordGroupSkip counts a tick where a group was not solved.
func RecordGroupSkip(group, reason string) {
	globalManager.groupSkips.WithLabelValues(group, reason).Inc()
}

// UpdateMotorOutput records the value written to one channel.
func UpdateMotorOutput(device, channel string, value uint8) {
	globalManager.motorOutput.WithLabelValues(device, channel).Set(float64(value))
}

// Telemetry receiver.

// RecordSampleReceived counts an accepted contact sample.
func RecordSampleReceived() {
	globalManager.samplesReceived.Inc()
}

// RecordSampleDropped counts a dropped telemetry message.
func RecordSampleDropped(reason string) {
	globalManager.samplesDropped.WithLabelValues(reason).Inc()
}

// UpdateReceiverActive records whether telemetry is currently arriving.
func UpdateReceiverActive(active bool) {
	globalManager.receiverActive.Set(boolGauge(active))
}

// Devices.

// RecordFrameSent counts a frame handed to a transport.
func RecordFrameSent(device string) {
	globalManager.framesSent.WithLabelValues(device).Inc()
}

// RecordFrameError counts a failed frame send.
func RecordFrameError(device string) {
	globalManager.frameErrors.WithLabelValues(device).Inc()
}

// RecordHeartbeat counts a heartbeat as accepted or rejected.
func RecordHeartbeat(device string, accepted bool) {
	if accepted {
		globalManager.heartbeatsAccepted.WithLabelValues(device).Inc()
		return
	}
	globalManager.heartbeatsRejected.WithLabelValues(device).Inc()
}

// UpdateDeviceConnected records a device connectivity state.
func UpdateDeviceConnected(device string, connected bool) {
	globalManager.deviceConnected.WithLabelValues(device).Set(boolGauge(connected))
}

// UpdateDeviceTelemetry records the battery and signal strength of a device.
func UpdateDeviceTelemetry(device string, battery, rssi int) {
	globalManager.deviceBattery.WithLabelValues(device).Set(float64(battery))
	globalManager.deviceRSSI.WithLabelValues(device).Set(float64(rssi))
}

// RecordMalformedFrame counts an inbound frame that failed to decode.
func RecordMalformedFrame(transport string) {
	globalManager.malformedFrames.WithLabelValues(transport).Inc()
}

// RecordDiscoveryLookup counts a discovery lookup outcome ("resolved", "failed").
func RecordDiscoveryLookup(device, result string) {
	globalManager.discoveryLookups.WithLabelValues(device, result).Inc()
}

// RecordDiscoveryRebinding counts an address change written by discovery.
func RecordDiscoveryRebinding(device string) {
	globalManager.discoveryRebindings.WithLabelValues(device).Inc()
}

// Notification queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a dropped notification.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordListenerLatency records how long one notification took to deliver.
func RecordListenerLatency(latencyMs float64) {
	globalManager.listenerLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
