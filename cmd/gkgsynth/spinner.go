package main

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// withSpinner shows a spinner on stderr while fn runs. The spinner stays
// silent when stderr is not a terminal or --json is set.
func (o *rootOptions) withSpinner(msg string, fn func() error) error {
	if o.json {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()
	return fn()
}
