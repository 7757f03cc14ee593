// Package stage describes the result of a single pipeline stage for one page.
package stage

import "fmt"

// Status is the coarse result of a stage.
type Status string

const (
	Extracted Status = "extracted"
	Degraded  Status = "degraded"
	Failed    Status = "failed"
)

// Name identifies a pipeline stage.
type Name string

const (
	Extract     Name = "extract"
	Translate   Name = "translate"
	Layout      Name = "layout"
	Reconstruct Name = "reconstruct"
	Finalize    Name = "finalize"
)

// Outcome is what a stage reports back to the job instead of swallowing its errors.
// Page is zero-based; -1 means the outcome concerns the whole document.
type Outcome struct {
	Stage  Name   `json:"stage"`
	Page   int    `json:"page"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Ok returns an Extracted outcome.
func Ok(name Name, page int) Outcome {
	return Outcome{Stage: name, Page: page, Status: Extracted}
}

// Degrade returns a Degraded outcome with a formatted reason.
func Degrade(name Name, page int, format string, args ...interface{}) Outcome {
	return Outcome{Stage: name, Page: page, Status: Degraded, Reason: fmt.Sprintf(format, args...)}
}

// Fail returns a Failed outcome with a formatted reason.
func Fail(name Name, page int, format string, args ...interface{}) Outcome {
	return Outcome{Stage: name, Page: page, Status: Failed, Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return fmt.Sprintf("%s[page %d]: %s", o.Stage, o.Page, o.Status)
	}
	return fmt.Sprintf("%s[page %d]: %s (%s)", o.Stage, o.Page, o.Status, o.Reason)
}

// Worst returns the most severe status among the outcomes, Extracted when empty.
func Worst(outcomes []Outcome) Status {
	worst := Extracted
	for _, o := range outcomes {
		switch o.Status {
		case Failed:
			return Failed
		case Degraded:
			worst = Degraded
		}
	}
	return worst
}
