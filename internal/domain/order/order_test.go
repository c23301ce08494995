package order

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
)

func TestTotalSumsFromZero(t *testing.T) {
	assert.True(t, Total(nil).IsZero())

	items := []catalog.Item{
		{Name: "margherita", Price: 10},
	}
	assert.Equal(t, 10.0, New("a@b.com", items).TotalAmount)

	items = []catalog.Item{
		{Name: "a", Price: 0.1},
		{Name: "b", Price: 0.2},
		{Name: "c", Price: 12.35},
	}
	o := New("a@b.com", items)
	assert.Equal(t, 12.65, o.TotalAmount)
	assert.Equal(t, []string{"a", "b", "c"}, o.ItemNames())
	assert.Equal(t, "12.65", o.Amount().String())
}

func TestStepProgression(t *testing.T) {
	s := StepAuthPending
	var seen []Step
	for !s.Terminal() {
		seen = append(seen, s)
		s = s.Next()
	}
	assert.Equal(t, []Step{
		StepAuthPending, StepCartResolved, StepPriced,
		StepPaymentCaptured, StepPersisted, StepNotified,
	}, seen)
	assert.Equal(t, StepFailed, StepFailed.Next())
}

func TestConfirmation(t *testing.T) {
	o := New("a@b.com", []catalog.Item{{Name: "margherita", Price: 10}, {Name: "pepperoni", Price: 12.5}})
	msg := o.Confirmation()
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, "You have made a Pizza Order!", msg.Subject)
	assert.Equal(t, "You have ordered margherita, pepperoni for a total amount of 22.50", msg.Body)
}
