// Package conformance checks compiled units against expected behavior.
//
// Runner executes WebAssembly test suite scripts converted by wast2json:
//
//	s, err := conformance.LoadScript("i32.json")
//	report, err := conformance.NewRunner().Run(ctx, s)
//	fmt.Println(report.Summary())
//
// Commands that need features the compiler lacks (floats, memory,
// globals, linking) are reported as skipped, never as failures.
//
// Differential runs the same binary on wazero and on the compiled units
// and compares values and trap messages case by case.
package conformance
