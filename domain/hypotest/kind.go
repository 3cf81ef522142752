package hypotest

// Kind selects the test-statistic construction.
type Kind string

const (
	// KindQMu is the general test statistic for a hypothesized signal
	// strength mu, with the best-fit mu floored at zero when it goes
	// negative (bounded-parameter convention).
	KindQMu Kind = "q_mu"

	// KindQ0 is the discovery test statistic evaluated at mu=0. It is
	// forced to zero whenever the best-fit mu is non-positive, since a
	// deficit is not evidence for a signal.
	KindQ0 Kind = "q0"

	// KindQTildeMu is the exclusion test statistic: zero when the
	// best-fit mu exceeds the hypothesis, and compared against the
	// mu=0 profile when the best-fit mu is negative.
	KindQTildeMu Kind = "q_tilde_mu"
)

// Valid reports whether k is a known test-statistic kind.
func (k Kind) Valid() bool {
	switch k {
	case KindQMu, KindQ0, KindQTildeMu:
		return true
	}
	return false
}
