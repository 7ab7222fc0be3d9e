package verifier

import (
	"github.com/rs/zerolog"
)

// CompareFiles compares two captured message files and logs the verdict.
func CompareFiles(pathA, pathB string, logger zerolog.Logger) (*Result, error) {
	a, err := OpenFile(pathA)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	b, err := OpenFile(pathB)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	res, err := Compare(a, b)
	if err != nil {
		return nil, err
	}
	LogResult(logger, res)
	return res, nil
}

// LogResult reports a comparison verdict.
func LogResult(logger zerolog.Logger, res *Result) {
	if res.Verdict == Pass {
		logger.Info().Int("messages", res.TotalA).Int("distinct", res.DistinctA).
			Msg("Comparison test passed.")
		return
	}
	event := logger.Error().
		Str("reason", res.Reason).
		Int("total_a", res.TotalA).Int("total_b", res.TotalB).
		Int("distinct_a", res.DistinctA).Int("distinct_b", res.DistinctB)
	if m := res.Mismatch; m != nil {
		event = event.Int("count_a", m.CountA).Int("count_b", m.CountB).
			Int("data_bytes", len(m.Message.Data)).
			Interface("attributes", m.Message.Attributes)
	}
	event.Msg("Comparison test failed.")
}
