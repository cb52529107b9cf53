// Package flow is the runtime library for argot workflow scripts.
//
// A script is an ordinary Go program: top-level declarations name the
// workflow's mount points and parameters, step functions carry an
// //argot:step directive, and a single //argot:entry function wires steps
// together. Run directly with `go run`, the script executes against the
// local filesystem through this package; compiled with `argot compile`, the
// same source becomes a workflow manifest for the orchestrator and this
// package is no longer involved.
//
// The accessor surface is deliberately narrow. The compiler rewrites exactly
// the patterns documented on Inputs, Outputs and Artifact; anything else,
// such as aliasing an accessor or computing a slot name, is rejected at
// compile time so that local and orchestrated behavior cannot drift apart.
package flow
