package services

import (
	"time"

	"coteri/internal/domain/verification"
)

const (
	anomalyWindow    = 120 * time.Second
	burstWindow      = 60 * time.Second
	burstThreshold   = 10
	burstScore       = 60
	invalidThreshold = 5
	invalidScore     = 70
)

// ScoreAttempts applies the advisory anomaly heuristic to a staff member's
// earlier attempts at one venue. Only history is counted, never the attempt
// being recorded. When both rules trip the higher score wins.
func ScoreAttempts(now time.Time, history []verification.Attempt) (verification.Flag, bool) {
	windowStart := now.Add(-anomalyWindow)
	burstStart := now.Add(-burstWindow)

	var recent, invalids int
	for _, a := range history {
		if a.OccurredAt.Before(windowStart) {
			continue
		}
		if !a.OccurredAt.Before(burstStart) {
			recent++
		}
		if a.Result == verification.StatusInvalid {
			invalids++
		}
	}

	var flag verification.Flag
	flagged := false
	if recent >= burstThreshold {
		flag = verification.Flag{Reason: verification.FlagBurstAttempts, Score: burstScore}
		flagged = true
	}
	if invalids >= invalidThreshold && (!flagged || invalidScore > flag.Score) {
		flag = verification.Flag{Reason: verification.FlagRepeatedInvalids, Score: invalidScore}
		flagged = true
	}
	return flag, flagged
}
