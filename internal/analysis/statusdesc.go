package analysis

import "fmt"

// buildStatusDesc assembles the StatusDesc grammar from §4.2:
//
//	{emaLongAbove}-{emaMediumDirection}{emaLongDirection}-{color}-{emaLongConvergenceType}
//
// Any missing component renders as "-".
func buildStatusDesc(a FullAnalysis) string {
	return fmt.Sprintf("%s-%s%s-%s-%s",
		a.EMALongAbove.Char(),
		a.EMAMediumDirection.Char(),
		a.EMALongDirection.Char(),
		a.Color.Char(),
		a.EMALongConvergenceType.Char(),
	)
}
