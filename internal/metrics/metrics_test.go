package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return float64(out.GetHistogram().GetSampleCount())
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	h := Hooks()

	text := NodesExecuted.WithLabelValues("text")
	before := value(t, text)
	h.OnNodeExecute(ctx, &domain.NodeEvent{NodeID: "a", NodeKind: domain.KindText})
	assert.Equal(t, before+1, value(t, text))

	before = value(t, CurrentChanges)
	h.OnCurrentChange(ctx, &domain.CurrentEvent{To: "a"})
	assert.Equal(t, before+1, value(t, CurrentChanges))

	before = value(t, ChoicesPicked)
	h.OnChoicePicked(ctx, &domain.ChoiceEvent{NodeID: "ask", Label: "Go"})
	assert.Equal(t, before+1, value(t, ChoicesPicked))

	wins := MinigamesCompleted.WithLabelValues("success")
	before = value(t, wins)
	h.OnMinigameComplete(ctx, &domain.MinigameEvent{NodeID: "duel", Success: true})
	assert.Equal(t, before+1, value(t, wins))

	before = value(t, DelaySeconds)
	h.OnDelay(ctx, &domain.DelayEvent{NodeID: "wait", Duration: time.Second})
	assert.Equal(t, before+1, value(t, DelaySeconds))
}
