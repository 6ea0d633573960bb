// Package cpu exposes the processor instructions that install descriptor
// tables and switch the active task.
//
// On 386 the functions are implemented in assembly. On any other
// architecture the package runs hosted: the GDTR and TR registers are
// shadowed in memory so that code driving them can run under the Go test
// tooling, and Halt terminates the process.
package cpu
