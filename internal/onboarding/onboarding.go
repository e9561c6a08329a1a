// Package onboarding holds the first-run instruction carousel. It is a
// linear step machine and knows nothing about the audio session.
package onboarding

import "strings"

// Step is one instruction card.
type Step struct {
	Title       string
	Description string
}

// DefaultSteps are the first-run instructions in display order.
var DefaultSteps = []Step{
	{
		Title:       "Connect Earbuds",
		Description: "Pair and connect your Bluetooth earbuds, then check `spymic devices` lists them as an output.",
	},
	{
		Title:       "Grant Permissions",
		Description: "Make sure the audio server can open your microphone. `spymic doctor` reports what is missing.",
	},
	{
		Title:       "Activate SpyMic",
		Description: "Run `spymic toggle` to start listening. It keeps running until you press Ctrl-C.",
	},
	{
		Title:       "Adjust & Listen",
		Description: "From another terminal, `spymic play` pauses or resumes and `spymic volume 0.6` sets the volume.",
	},
}

// Carousel tracks the current step and whether the walkthrough is done.
// The zero value is not usable; construct with New.
type Carousel struct {
	steps    []Step
	index    int
	complete bool
}

// New returns a carousel over steps, or over DefaultSteps when steps is
// empty.
func New(steps ...Step) *Carousel {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	return &Carousel{steps: append([]Step(nil), steps...)}
}

// Next advances one step. At the last step it completes the carousel.
func (c *Carousel) Next() {
	if c.complete {
		return
	}
	if c.IsLast() {
		c.complete = true
		return
	}
	c.index++
}

// Skip completes the carousel from any step.
func (c *Carousel) Skip() {
	c.complete = true
}

// IsComplete reports whether the walkthrough finished or was skipped.
func (c *Carousel) IsComplete() bool {
	return c.complete
}

// Current returns the step on display. After completion it keeps returning
// the step that was showing.
func (c *Carousel) Current() Step {
	return c.steps[c.index]
}

func (c *Carousel) Index() int {
	return c.index
}

func (c *Carousel) Len() int {
	return len(c.steps)
}

func (c *Carousel) IsLast() bool {
	return c.index == len(c.steps)-1
}

// Steps returns a copy of the configured steps.
func (c *Carousel) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

// Progress renders one dot per step with the current one filled.
func (c *Carousel) Progress() string {
	dots := make([]string, len(c.steps))
	for i := range dots {
		dots[i] = "○"
		if i == c.index {
			dots[i] = "●"
		}
	}
	return strings.Join(dots, " ")
}
