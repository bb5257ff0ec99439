package restart

// Reason explains a Decision.
type Reason int

const (
	// A restartable cause was found and the retry budget allows another attempt.
	ReasonRestartable Reason = iota
	// No signature matched. Not an error, a definite "do not restart".
	ReasonClassificationMiss
	// A restartable cause was found but the retry budget is spent.
	ReasonRetryBudgetExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonRestartable:
		return "Restartable"
	case ReasonClassificationMiss:
		return "ClassificationMiss"
	case ReasonRetryBudgetExhausted:
		return "RetryBudgetExhausted"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of one failure evaluation.
type Decision struct {
	Restart  bool
	Strategy Strategy
	Reason   Reason
	// The error log could not be fetched and the evaluation ran on empty text.
	Degraded bool
	// Why the fetch failed, when Degraded.
	FetchErr error
	// The text that was classified.
	Log string
}

// Retry is the retry budget check shared by every engine variant.
func Retry(alreadyRetryNum, maxRetryNum int) bool {
	return alreadyRetryNum < maxRetryNum
}
