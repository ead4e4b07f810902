package domain

type CheckoutState string

const (
	CheckoutStateIdle       CheckoutState = "IDLE"
	CheckoutStateValidating CheckoutState = "VALIDATING"
	CheckoutStateSubmitting CheckoutState = "SUBMITTING"
	CheckoutStateSucceeded  CheckoutState = "SUCCEEDED"
	CheckoutStateFailed     CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:       {CheckoutStateValidating},
	CheckoutStateValidating: {CheckoutStateSubmitting, CheckoutStateFailed},
	CheckoutStateSubmitting: {CheckoutStateSucceeded, CheckoutStateFailed},
	CheckoutStateFailed:     {CheckoutStateIdle},
	// a succeeded cart is cleared; the next attempt starts a new cycle
	CheckoutStateSucceeded: {CheckoutStateIdle},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func CanTransitionTo(s, next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded || s == CheckoutStateFailed
}

// InFlight reports whether a submission is being processed.
func (s CheckoutState) InFlight() bool {
	return s == CheckoutStateValidating || s == CheckoutStateSubmitting
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
