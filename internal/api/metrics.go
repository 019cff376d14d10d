package api

import (
	"net/http"
	"runtime"
	"time"
)

const bytesPerMB = 1 << 20

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Devices       DeviceMetrics    `json:"devices"`
	Sinks         SinkMetrics      `json:"sinks"`
	Audit         *AuditMetrics    `json:"audit,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DeviceMetrics counts known devices and cached descriptions.
type DeviceMetrics struct {
	Total        int `json:"total"`
	Descriptions int `json:"descriptions"`
}

// SinkMetrics has one entry per enabled telemetry sink.
type SinkMetrics struct {
	MQTT     *SinkStatus `json:"mqtt,omitempty"`
	InfluxDB *SinkStatus `json:"influxdb,omitempty"`
}

// SinkStatus is omitted entirely for a disabled sink. Failures is reported
// when the sink counts them.
type SinkStatus struct {
	Connected bool    `json:"connected"`
	Failures  *uint64 `json:"failures,omitempty"`
}

type AuditMetrics struct {
	Dropped int64 `json:"dropped"`
}

// DatabaseMetrics is a subset of sql.DBStats.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// failureCounter is implemented by sinks that count failed deliveries.
type failureCounter interface {
	Failures() uint64
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime:       runtimeMetrics(),
		WebSocket:     WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Devices: DeviceMetrics{
			Total:        s.store.DeviceCount(),
			Descriptions: s.store.DescriptionCount(),
		},
		Sinks: SinkMetrics{
			MQTT:     sinkStatus(s.mqtt),
			InfluxDB: sinkStatus(s.influx),
		},
	}

	if s.auditRec != nil {
		m.Audit = &AuditMetrics{Dropped: s.auditRec.Dropped()}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, m)
}

func runtimeMetrics() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(ms.Alloc) / bytesPerMB,
		MemoryTotalMB: float64(ms.TotalAlloc) / bytesPerMB,
		NumGC:         ms.NumGC,
	}
}

func sinkStatus(c ConnectionStatus) *SinkStatus {
	if c == nil {
		return nil
	}
	st := &SinkStatus{Connected: c.IsConnected()}
	if fc, ok := c.(failureCounter); ok {
		n := fc.Failures()
		st.Failures = &n
	}
	return st
}
