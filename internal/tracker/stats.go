package tracker

import (
	"encoding/json"
	"math"
	"sort"
)

// LanguageStats is the per-language slice of a statistics snapshot.
type LanguageStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

// Statistics is a derived snapshot of a run's aggregate numbers. It carries no
// state of its own and is always reconstructible from the run via Compute.
type Statistics struct {
	Completed           int                      `json:"completed"`
	Passed              int                      `json:"passed"`
	Failed              int                      `json:"failed"`
	Skipped             int                      `json:"skipped"`
	Errored             int                      `json:"errored"`
	PassRate            float64                  `json:"pass_rate"`
	TotalCostUSD        float64                  `json:"total_cost_usd"`
	TotalTokens         int64                    `json:"total_tokens"`
	TokensSent          int64                    `json:"tokens_sent"`
	TokensReceived      int64                    `json:"tokens_received"`
	ByLanguage          map[string]LanguageStats `json:"by_language"`
	AvgDurationSeconds  float64                  `json:"avg_duration_seconds"`
	EstRemainingSeconds float64                  `json:"est_remaining_seconds"`
}

// Languages returns the breakdown keys in stable order for display.
func (s Statistics) Languages() []string {
	langs := make([]string, 0, len(s.ByLanguage))
	for l := range s.ByLanguage {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// aggregates is the tracker's incrementally maintained cache. Completing an
// exercise folds its numbers in with O(1) work; nothing ever walks the full
// exercise map on the hot path.
type aggregates struct {
	total      int
	completed  int
	passed     int
	failed     int
	skipped    int
	errored    int
	cost       float64
	tokens     float64
	tokensIn   float64
	tokensOut  float64
	durSum     float64
	durCount   int
	byLanguage map[string]*LanguageStats
}

func newAggregates(total int) aggregates {
	return aggregates{total: total, byLanguage: make(map[string]*LanguageStats)}
}

func (a *aggregates) lang(language string) *LanguageStats {
	ls, ok := a.byLanguage[language]
	if !ok {
		ls = &LanguageStats{}
		a.byLanguage[language] = ls
	}
	return ls
}

// fold absorbs one exercise that just reached a terminal state.
func (a *aggregates) fold(e *Exercise) {
	if !e.State.Terminal() {
		return
	}
	a.completed++
	ls := a.lang(e.Language)
	ls.Total++
	switch e.State {
	case ExercisePassed:
		a.passed++
		ls.Passed++
	case ExerciseFailed:
		a.failed++
		ls.Failed++
	case ExerciseSkipped:
		a.skipped++
	case ExerciseError:
		a.errored++
	}
	a.cost += metricNumber(e.Metrics, "cost")
	in := metricNumber(e.Metrics, "tokens_sent", "sent_tokens", "input_tokens")
	out := metricNumber(e.Metrics, "tokens_received", "received_tokens", "output_tokens")
	total := metricNumber(e.Metrics, "total_tokens", "tokens")
	if total == 0 {
		total = in + out
	}
	a.tokensIn += in
	a.tokensOut += out
	a.tokens += total
	for _, d := range e.Durations {
		a.durSum += d
		a.durCount++
	}
}

// rebuild recomputes the cache from scratch. Load paths only.
func (a *aggregates) rebuild(r *Run) {
	*a = newAggregates(r.TotalExercises)
	for _, e := range r.Exercises {
		a.fold(e)
	}
}

func (a *aggregates) snapshot() Statistics {
	s := Statistics{
		Completed:      a.completed,
		Passed:         a.passed,
		Failed:         a.failed,
		Skipped:        a.skipped,
		Errored:        a.errored,
		TotalCostUSD:   round(a.cost, 4),
		TotalTokens:    int64(a.tokens),
		TokensSent:     int64(a.tokensIn),
		TokensReceived: int64(a.tokensOut),
		ByLanguage:     make(map[string]LanguageStats, len(a.byLanguage)),
	}
	if a.total > 0 {
		s.PassRate = round(float64(a.passed)/float64(a.total)*100, 2)
	}
	if a.durCount > 0 {
		s.AvgDurationSeconds = round(a.durSum/float64(a.durCount), 2)
		if remaining := a.total - a.completed; remaining > 0 {
			s.EstRemainingSeconds = round(s.AvgDurationSeconds*float64(remaining), 2)
		}
	}
	for lang, ls := range a.byLanguage {
		out := *ls
		if out.Total > 0 {
			out.PassRate = round(float64(out.Passed)/float64(out.Total)*100, 2)
		}
		s.ByLanguage[lang] = out
	}
	return s
}

// Compute derives a statistics snapshot from a run alone. The monitor and the
// report command use it on loaded snapshots; it yields exactly what the
// tracker's incremental cache would.
func Compute(r *Run) Statistics {
	var a aggregates
	a.rebuild(r)
	return a.snapshot()
}

// metricNumber pulls the first numeric value found under any of the keys. The
// metrics map itself stays opaque; only aggregation recognizes the
// conventional cost/token keys.
func metricNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f
			}
		}
	}
	return 0
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
