package audiosearch

// CallOption adjusts a single Index or Search call.
type CallOption func(params map[string]any)

// ChunkDuration overrides the window length in seconds.
func ChunkDuration(sec float64) CallOption {
	return func(p map[string]any) { p["chunk_duration"] = sec }
}

// ChunkStride overrides the window hop in seconds.
func ChunkStride(sec float64) CallOption {
	return func(p map[string]any) { p["chunk_stride"] = sec }
}

// TopK sets how many chunks are retrieved per query chunk.
// It also caps the number of matches unless Limit is set.
func TopK(k int) CallOption {
	return func(p map[string]any) { p["top_k"] = k }
}

// Limit caps the number of ranked matches per query. Zero keeps all.
func Limit(n int) CallOption {
	return func(p map[string]any) { p["limit"] = n }
}

// Ranking selects the aggregation policy.
func Ranking(policy RankPolicy) CallOption {
	return func(p map[string]any) { p["ranking"] = string(policy) }
}

// ExcludeSelf drops matches whose recording has the query's ID.
func ExcludeSelf() CallOption {
	return func(p map[string]any) { p["exclude_self"] = true }
}

// Param sets a raw pipeline parameter.
func Param(key string, value any) CallOption {
	return func(p map[string]any) { p[key] = value }
}

func buildParams(opts []CallOption) map[string]any {
	if len(opts) == 0 {
		return nil
	}
	p := make(map[string]any, len(opts))
	for _, o := range opts {
		o(p)
	}
	return p
}
