package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rbright/spymic/internal/onboarding"
)

// commandGuide walks the first-run carousel on the terminal. Enter advances,
// "s" skips, and end of input stops early.
func (r Runner) commandGuide() int {
	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	scanner := bufio.NewScanner(stdin)
	carousel := onboarding.New()

	for !carousel.IsComplete() {
		r.renderStep(carousel)
		if !scanner.Scan() {
			fmt.Fprintln(r.Stdout)
			if err := scanner.Err(); err != nil {
				fmt.Fprintf(r.Stderr, "error: read input: %v\n", err)
				return 1
			}
			return 0
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "s", "skip", "q":
			carousel.Skip()
		default:
			carousel.Next()
		}
	}

	fmt.Fprintf(r.Stdout, "You're all set. Run `%s toggle` to start listening.\n", binaryName)
	return 0
}

func (r Runner) renderStep(carousel *onboarding.Carousel) {
	step := carousel.Current()
	action := "next"
	if carousel.IsLast() {
		action = "done"
	}

	fmt.Fprintf(r.Stdout, "\n%s  %d/%d\n", carousel.Progress(), carousel.Index()+1, carousel.Len())
	fmt.Fprintf(r.Stdout, "%s\n%s\n", step.Title, step.Description)
	fmt.Fprintf(r.Stdout, "[Enter] %s  [s] skip > ", action)
}
