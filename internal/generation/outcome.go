package generation

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusFailed  Status = "failed"
)

// Outcome is one of Success, Timeout or Failure. The unexported method keeps
// the set closed.
type Outcome interface {
	Status() Status
	outcome()
}

type Success struct {
	Text           string
	Tone           Tone
	GenerationTime time.Duration
	WordCount      int
	CharacterCount int
}

type Timeout struct {
	Elapsed time.Duration
}

type Failure struct {
	Err error
}

func (Success) Status() Status { return StatusSuccess }
func (Timeout) Status() Status { return StatusTimeout }
func (Failure) Status() Status { return StatusFailed }

func (Success) outcome() {}
func (Timeout) outcome() {}
func (Failure) outcome() {}

func (f Failure) Error() string {
	if f.Err == nil {
		return "generation failed"
	}
	return f.Err.Error()
}
