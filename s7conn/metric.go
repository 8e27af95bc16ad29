package s7conn

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// HandshakeCount indicates the number of handshakes attempted.
	HandshakeCount atomic.Uint64
	// HandshakeErrCount indicates the number of failed handshakes.
	HandshakeErrCount atomic.Uint64

	// RequestCount indicates the number of requests sent.
	RequestCount atomic.Uint64
	// RequestErrCount indicates the number of requests that failed.
	RequestErrCount atomic.Uint64

	// ConnRetryGauge indicates the number of consecutive automatic reconnects.
	ConnRetryGauge atomic.Uint32
}

func (m *ConnectionMetrics) incHandshakeCount() {
	m.HandshakeCount.Add(1)
}

func (m *ConnectionMetrics) incHandshakeErrCount() {
	m.HandshakeErrCount.Add(1)
}

func (m *ConnectionMetrics) incRequestCount() {
	m.RequestCount.Add(1)
}

func (m *ConnectionMetrics) incRequestErrCount() {
	m.RequestErrCount.Add(1)
}

func (m *ConnectionMetrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *ConnectionMetrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}
