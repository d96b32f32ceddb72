package selector

import (
	"math"

	"streampick/models"
)

// Component weights. Quality and throughput dominate; latency breaks ties.
const (
	qualityWeight    = 0.4
	throughputWeight = 0.4
	latencyWeight    = 0.2

	unknownThroughputPoints = 30
)

var qualityPoints = map[models.QualityTier]float64{
	models.Quality4K:    100,
	models.Quality2K:    85,
	models.Quality1080p: 75,
	models.Quality720p:  60,
	models.Quality480p:  40,
	models.QualitySD:    20,
}

// BatchExtremes are the observed bounds across one probing batch's
// successful results. Scores are only comparable within their own batch.
type BatchExtremes struct {
	MaxThroughput float64
	MinLatency    int64
	MaxLatency    int64
}

// ExtremesOf computes batch extremes over successful probe results only.
func ExtremesOf(results []models.ProbeResult) BatchExtremes {
	var ext BatchExtremes
	first := true
	for _, r := range results {
		if !r.OK {
			continue
		}
		if r.Throughput > ext.MaxThroughput {
			ext.MaxThroughput = r.Throughput
		}
		if r.LatencyMS > 0 {
			if first || r.LatencyMS < ext.MinLatency {
				ext.MinLatency = r.LatencyMS
			}
			if r.LatencyMS > ext.MaxLatency {
				ext.MaxLatency = r.LatencyMS
			}
			first = false
		}
	}
	return ext
}

// Score converts one probe result into a comparable value in [0,100],
// rounded to two decimal places.
func Score(r models.ProbeResult, ext BatchExtremes) float64 {
	quality := qualityPoints[r.Quality]

	throughput := float64(unknownThroughputPoints)
	if r.Throughput > 0 && ext.MaxThroughput > 0 {
		throughput = clamp(r.Throughput / ext.MaxThroughput * 100)
	}

	var latency float64
	switch {
	case r.LatencyMS <= 0:
		latency = 0
	case ext.MaxLatency == ext.MinLatency:
		latency = 100
	default:
		latency = clamp(float64(ext.MaxLatency-r.LatencyMS) / float64(ext.MaxLatency-ext.MinLatency) * 100)
	}

	total := quality*qualityWeight + throughput*throughputWeight + latency*latencyWeight
	return math.Round(total*100) / 100
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
