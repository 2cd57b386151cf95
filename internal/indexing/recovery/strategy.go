package recovery

import (
	"math"
	"time"
)

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay for the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if we should retry based on the error and attempt count.
	ShouldRetry(err error, attempt int) bool

	// Classify reports which failure class err belongs to.
	Classify(err error) FailureCategory
}

// ExponentialBackoff doubles the delay on every attempt up to MaxDelay.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Classifier   Classifier
}

// DefaultBackoff is used for supervised task restarts.
// 2s, 4s, 8s, 16s, 32s (Max 60s)
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = func(err error) FailureCategory {
			return CategoryTransient
		}
	}
	return &ExponentialBackoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  5,
		Classifier:   classifier,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks if error is transient and max attempts not exceeded.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return s.Classify(err) == CategoryTransient
}

func (s *ExponentialBackoff) Classify(err error) FailureCategory {
	return classifyWith(s.Classifier, err)
}

// FixedBackoff waits the same delay between attempts.
type FixedBackoff struct {
	Delay       time.Duration
	MaxAttempts int
	Classifier  Classifier
}

// OperationBackoff retries a single stream operation: 1s apart, 100 attempts.
func OperationBackoff() *FixedBackoff {
	return &FixedBackoff{Delay: time.Second, MaxAttempts: 100, Classifier: DefaultClassifier}
}

// CycleBackoff retries a failed price backfill cycle: 10s apart, 100 attempts.
func CycleBackoff() *FixedBackoff {
	return &FixedBackoff{Delay: 10 * time.Second, MaxAttempts: 100, Classifier: DefaultClassifier}
}

func (s *FixedBackoff) GetDelay(int) time.Duration {
	return s.Delay
}

func (s *FixedBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return s.Classify(err) == CategoryTransient
}

func (s *FixedBackoff) Classify(err error) FailureCategory {
	return classifyWith(s.Classifier, err)
}

func classifyWith(c Classifier, err error) FailureCategory {
	if c == nil {
		return DefaultClassifier(err)
	}
	return c(err)
}
