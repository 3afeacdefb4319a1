package gesture

import (
	"time"

	"keybowd/internal/keypad"
)

// DefaultHoldThreshold separates SINGLE from HOLD. A press must last
// strictly longer than this to be a HOLD.
const DefaultHoldThreshold = 500 * time.Millisecond

func isPress(e Entry) bool { return e.Pressed }

// PressDuration returns how long key has been down at now, measured from
// its most recent recorded press.
func PressDuration(tl *Timeline, key int, now time.Time) (time.Duration, bool) {
	press, ok := tl.MostRecentMatching(key, isPress)
	if !ok {
		return 0, false
	}
	return now.Sub(press.Timestamp), true
}

// Classify decides the gesture completed by release. The timeline must not
// yet contain release itself. Presses, releases without a recorded press and
// gestures outside interest all yield the empty Result.
func Classify(release keypad.Transition, now time.Time, tl *Timeline, interest InterestSet, threshold time.Duration) Result {
	if release.Pressed {
		return EmptyResult()
	}
	held, ok := PressDuration(tl, release.Key, now)
	if !ok {
		return EmptyResult()
	}
	return decide(release.Key, held, interest, threshold)
}

func decide(key int, held time.Duration, interest InterestSet, threshold time.Duration) Result {
	if held > threshold && interest.Has(Hold) {
		return NewResult(key, Hold)
	}
	if interest.Has(Single) {
		return NewResult(key, Single)
	}
	return EmptyResult()
}
