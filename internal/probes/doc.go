// Package probes holds the built-in hooks and contributors a node wires from
// its configuration: TCP dependency checks, a startup wait for dependencies
// and a stage-based readiness check.
package probes
