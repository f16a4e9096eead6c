package classifier

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

var thresholds = config.Thresholds{LatencyMS: 100, SpeedMbps: 1, PacketLossPct: 5}

func sample(latency, speed optional.Opt[float64], loss float64) types.Sample {
	return types.Sample{
		TargetHost:        "8.8.8.8",
		AvgLatencyMS:      latency,
		MinLatencyMS:      latency,
		MaxLatencyMS:      latency,
		PacketLossPct:     loss,
		DownloadSpeedMbps: speed,
	}
}

func TestClassify(t *testing.T) {
	some := optional.New[float64]
	none := optional.Empty[float64]()

	tests := []struct {
		name   string
		sample types.Sample
		want   types.Status
	}{
		{"healthy", sample(some(20), some(50), 0), types.StatusOK},
		{"latency at threshold is not a breach", sample(some(100), some(50), 0), types.StatusOK},
		{"high latency", sample(some(100.5), some(50), 0), types.StatusHighLatency},
		{"slow speed", sample(some(20), some(0.5), 0), types.StatusSlowSpeed},
		{"speed at threshold is not a breach", sample(some(20), some(1), 0), types.StatusOK},
		{"loss at threshold is not a breach", sample(some(20), some(50), 5), types.StatusOK},
		{"packet loss", sample(some(20), some(50), 25), types.StatusPacketLoss},
		{"speed overrides latency", sample(some(500), some(0.1), 0), types.StatusSlowSpeed},
		{"loss overrides latency", sample(some(500), some(50), 50), types.StatusPacketLoss},
		{"loss overrides everything", sample(some(500), some(0.1), 50), types.StatusPacketLoss},
		{"unknown fields never breach", sample(none, none, 0), types.StatusOK},
		{"unknown latency with slow speed", sample(none, some(0.2), 0), types.StatusSlowSpeed},
		{"total probe failure surfaces through loss", sample(none, none, 100), types.StatusPacketLoss},
		{"failed download records zero speed", sample(some(20), some(0), 0), types.StatusSlowSpeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sample, thresholds))
		})
	}
}

func TestClassifyAlwaysReturnsKnownStatus(t *testing.T) {
	values := []optional.Opt[float64]{
		optional.Empty[float64](),
		optional.New(0.0),
		optional.New(1.0),
		optional.New(99.9),
		optional.New(1000.0),
	}
	losses := []float64{0, 5, 5.1, 50, 100}

	for _, latency := range values {
		for _, speed := range values {
			for _, loss := range losses {
				status := Classify(sample(latency, speed, loss), thresholds)
				assert.True(t, slices.Contains(types.Statuses, status), "unexpected status %q", status)
			}
		}
	}
}

func TestConfigurablePacketLossThreshold(t *testing.T) {
	strict := thresholds
	strict.PacketLossPct = 0

	s := sample(optional.New(20.0), optional.New(50.0), 1)
	assert.Equal(t, types.StatusOK, Classify(s, thresholds))
	assert.Equal(t, types.StatusPacketLoss, Classify(s, strict))
}

func TestRecord(t *testing.T) {
	s := sample(optional.New(250.0), optional.New(50.0), 0)

	record := Record(s, thresholds)

	assert.Equal(t, s, record.Sample)
	assert.Equal(t, types.StatusHighLatency, record.Status)
}
