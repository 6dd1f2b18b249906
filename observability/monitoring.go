// Package observability aggregates delivery metrics for logging and the
// debug inspector. Counters are atomic; failures to observe never affect
// delivery.
package observability

import "sync/atomic"

type Stats struct {
	ActiveConnections int64  `json:"active_connections"`
	MessagesPersisted uint64 `json:"messages_persisted"`
	MessagesPushed    uint64 `json:"messages_pushed"`
	PushFailures      uint64 `json:"push_failures"`
	PresencePushes    uint64 `json:"presence_pushes"`
}

type Monitoring struct {
	activeConnections atomic.Int64
	messagesPersisted atomic.Uint64
	messagesPushed    atomic.Uint64
	pushFailures      atomic.Uint64
	presencePushes    atomic.Uint64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) ConnectionOpened() { m.activeConnections.Add(1) }
func (m *Monitoring) ConnectionClosed() { m.activeConnections.Add(-1) }
func (m *Monitoring) IncrPersisted()    { m.messagesPersisted.Add(1) }
func (m *Monitoring) IncrPushed()       { m.messagesPushed.Add(1) }
func (m *Monitoring) IncrPushFailure()  { m.pushFailures.Add(1) }
func (m *Monitoring) IncrPresencePush() { m.presencePushes.Add(1) }

func (m *Monitoring) Snapshot() Stats {
	return Stats{
		ActiveConnections: m.activeConnections.Load(),
		MessagesPersisted: m.messagesPersisted.Load(),
		MessagesPushed:    m.messagesPushed.Load(),
		PushFailures:      m.pushFailures.Load(),
		PresencePushes:    m.presencePushes.Load(),
	}
}
