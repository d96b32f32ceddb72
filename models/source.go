package models

// QualityTier classifies a stream's resolution into a coarse bucket.
type QualityTier string

const (
	Quality4K      QualityTier = "4K"
	Quality2K      QualityTier = "2K"
	Quality1080p   QualityTier = "1080p"
	Quality720p    QualityTier = "720p"
	Quality480p    QualityTier = "480p"
	QualitySD      QualityTier = "SD"
	QualityUnknown QualityTier = "unknown"
)

// TierForHeight maps a pixel height to a quality tier.
func TierForHeight(height int) QualityTier {
	switch {
	case height >= 2160:
		return Quality4K
	case height >= 1440:
		return Quality2K
	case height >= 1080:
		return Quality1080p
	case height >= 720:
		return Quality720p
	case height >= 480:
		return Quality480p
	case height > 0:
		return QualitySD
	default:
		return QualityUnknown
	}
}

// CandidateSource is a playable source returned by the external catalog.
// Immutable once fetched; discarded after selection.
type CandidateSource struct {
	Source      string   `json:"source"`      // provider key
	ID          string   `json:"id"`          // provider-scoped source id
	SourceName  string   `json:"source_name"` // provider display name
	Title       string   `json:"title"`
	Year        string   `json:"year,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Description string   `json:"desc,omitempty"`
	Episodes    []string `json:"episodes"` // ordered playlist URLs
}

// RepresentativeEpisode returns the URL probed for this candidate.
// The second episode is preferred when available, so cold-start artifacts
// of a provider's first file do not skew the measurement.
func (c CandidateSource) RepresentativeEpisode() string {
	switch len(c.Episodes) {
	case 0:
		return ""
	case 1:
		return c.Episodes[0]
	default:
		return c.Episodes[1]
	}
}

// ProbeResult captures one live measurement of a candidate source.
type ProbeResult struct {
	Quality    QualityTier `json:"quality"`
	Throughput float64     `json:"throughput"` // bytes/sec, <=0 = unknown
	LatencyMS  int64       `json:"latencyMs"`  // <=0 = invalid/unmeasured
	OK         bool        `json:"ok"`
}

// ScoredCandidate pairs a candidate with its probe result and final score.
type ScoredCandidate struct {
	Source CandidateSource `json:"source"`
	Probe  ProbeResult     `json:"probe"`
	Score  float64         `json:"score"` // always in [0,100]
}
