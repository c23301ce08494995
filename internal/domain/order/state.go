package order

// Step names a checkout stage. The stages run strictly in declaration order;
// StepFailed may follow any of them.
type Step string

const (
	StepAuthPending     Step = "auth_pending"
	StepCartResolved    Step = "cart_resolved"
	StepPriced          Step = "priced"
	StepPaymentCaptured Step = "payment_captured"
	StepPersisted       Step = "persisted"
	// StepNotified is reached once the confirmation was attempted. A failed
	// send does not fail the checkout.
	StepNotified        Step = "notified"
	StepComplete        Step = "complete"
	StepFailed          Step = "failed"
)

var stepOrder = []Step{
	StepAuthPending,
	StepCartResolved,
	StepPriced,
	StepPaymentCaptured,
	StepPersisted,
	StepNotified,
	StepComplete,
}

// Next returns the stage after s. Terminal stages return themselves.
func (s Step) Next() Step {
	for i, st := range stepOrder {
		if st == s && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return s
}

func (s Step) Terminal() bool {
	return s == StepComplete || s == StepFailed
}
