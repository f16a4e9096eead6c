package classifier

import (
	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// Classify assigns exactly one status to a sample. The checks run in a fixed
// order and a later breach overwrites an earlier one: latency, then speed, then
// packet loss. Packet loss therefore wins whenever it breaches. Unknown fields
// never breach; a dead link still surfaces through its 100% loss.
func Classify(sample types.Sample, thresholds config.Thresholds) types.Status {
	status := types.StatusOK

	if avg, ok := sample.AvgLatencyMS.Get(); ok && avg > thresholds.LatencyMS {
		status = types.StatusHighLatency
	}

	if speed, ok := sample.DownloadSpeedMbps.Get(); ok && speed < thresholds.SpeedMbps {
		status = types.StatusSlowSpeed
	}

	if sample.PacketLossPct > thresholds.PacketLossPct {
		status = types.StatusPacketLoss
	}

	return status
}

// Record classifies a sample and pairs it with its status.
func Record(sample types.Sample, thresholds config.Thresholds) types.Record {
	return types.Record{
		Sample: sample,
		Status: Classify(sample, thresholds),
	}
}
