package audiosearch

// RankPolicy selects how chunk scores are aggregated per recording.
type RankPolicy string

// Rank policies.
const (
	RankMin RankPolicy = "min" // best chunk has the lowest score, e.g. a distance
	RankMax RankPolicy = "max" // best chunk has the highest score, e.g. a similarity
)

// Document is a recording to index or a query to search with.
// Set either URI or Waveform with SampleRate. An empty ID is replaced
// with a generated one.
type Document struct {
	ID         string
	URI        string
	Waveform   []float32
	SampleRate int
	Tags       map[string]any
}

// Match is an indexed recording ranked against a query. Scores holds the
// aggregated score under the metric name; BegInMs/EndInMs locate the best
// matching window inside the recording.
type Match struct {
	ID      string
	URI     string
	Scores  map[string]float64
	BegInMs float64
	EndInMs float64
}

// ItemResult reports the outcome of one input document.
type ItemResult struct {
	ID     string
	Offset int
	Chunks int
	Err    error
}

// IndexResult summarizes an Index call.
type IndexResult struct {
	Items   []ItemResult
	Indexed int
	Chunks  int
}

// Failed returns the items that were not indexed.
func (r IndexResult) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// SearchResult holds the ranked matches of one query document.
type SearchResult struct {
	ItemResult
	Matches []Match
}
