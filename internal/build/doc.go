// Package build runs the external build tool for one (flavor, version) inside
// its workspace and identifies the produced artifact.
//
// The executor only supervises the process: it stages the verified tool,
// renders the flavor's invocation, captures exit status and output, and
// locates the artifact by the descriptor's expected output pattern. Failures
// are never retried here; the scheduler retries on its next interval.
package build
