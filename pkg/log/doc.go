// Package log provides the logging abstraction used by nodecycle components.
//
// Library packages (lifecycle, health, monitor) accept a [Logger] and default
// to a [NoopLogger], so embedding nodecycle never produces output unless the
// host asks for it. The CLI wires the [ZerologAdapter].
//
// # Usage
//
//	logger := log.NewZerologAdapter(log.FormatConsole, zerolog.InfoLevel)
//	orch := lifecycle.NewOrchestrator(reg, hooks, subsystems,
//	    lifecycle.WithLogger(logger.With(log.String("component", "orchestrator"))),
//	)
//
// # Custom Loggers
//
// Implement [Logger] to route records into an existing logging setup. With
// must return a logger that carries the given fields on every record.
package log
