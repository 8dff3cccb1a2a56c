package domain

// DomainMetrics is a thread-safe read-only view of key domain runtime
// signals. It is updated from the domain loop goroutine and read from HTTP
// handlers and tests.
type DomainMetrics struct {
	Tick uint64 `json:"tick"`

	Entities int `json:"entities"`
	Sessions int `json:"sessions"`

	// DeferredEntities counts entities with properties waiting for a
	// retry frame, summed over sessions.
	DeferredEntities int `json:"deferred_entities"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (d *Domain) Metrics() DomainMetrics {
	if d == nil {
		return DomainMetrics{}
	}
	v := d.metrics.Load()
	if v == nil {
		return DomainMetrics{}
	}
	m, ok := v.(DomainMetrics)
	if !ok {
		return DomainMetrics{}
	}
	return m
}

// publishMetrics snapshots loop state for readers outside the loop.
func (d *Domain) publishMetrics(stepMS float64) {
	deferred := 0
	for _, sess := range d.sessions {
		deferred += sess.encode.Len()
	}
	d.metrics.Store(DomainMetrics{
		Tick:             d.tick.Load(),
		Entities:         len(d.records),
		Sessions:         len(d.sessions),
		DeferredEntities: deferred,
		QueueDepths: QueueDepths{
			Inbox: len(d.inbox),
			Join:  len(d.join),
			Leave: len(d.leave),
		},
		StepMS: stepMS,
	})
}
