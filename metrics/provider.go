package metrics

import (
	"context"
	"time"

	"github.com/VorobyevEvgeny/edu-lowcode-assist/model"
)

type instrumentedProvider struct {
	model.Provider
	metrics *Metrics
}

// InstrumentProvider wraps p so every Chat call is counted and timed.
func InstrumentProvider(p model.Provider, m *Metrics) model.Provider {
	return &instrumentedProvider{Provider: p, metrics: m}
}

func (p *instrumentedProvider) Chat(ctx context.Context, messages []model.Message) (model.Message, error) {
	name := p.GetModel()
	start := time.Now()

	reply, err := p.Provider.Chat(ctx, messages)

	p.metrics.ProviderLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ProviderCalls.WithLabelValues(name, outcome).Inc()

	return reply, err
}
