// Package lifecycle drives a single process ("node") through its startup and
// shutdown sequence.
//
// The pieces, leaves first:
//
//   - [StageRegister] holds the current [Stage] in an atomic cell. Only the
//     [Orchestrator] and the health aggregator write to it; everybody else
//     receives a [StageReader].
//   - [HookSet] keeps named, prioritized startup and shutdown [Hook] values and
//     runs each list sequentially in ascending priority order (ties keep
//     registration order). The first failing hook stops its list.
//   - [SubsystemSet] keeps [Subsystem] values whose Begin runs after the
//     startup hooks and whose End runs before the shutdown hooks. EndAll gives
//     every subsystem a chance to clean up and reports all failures together.
//   - [Orchestrator] ties them together behind Start and Stop.
//
// # Stage Machine
//
//	Initializing -> Starting -> Ready <-> Degraded
//	Ready|Degraded -> Stopping -> Stopped
//	any non-terminal stage -> Failed
//
// Stopped and Failed are terminal. Start is accepted only in Initializing and
// Stop only in Ready or Degraded; anything else returns [ErrInvalidTransition]
// without touching the register.
//
// # Cancellation
//
// The context given to Start or Stop is passed to every hook and subsystem.
// Hooks are cooperative: the orchestrator checks the context between hooks
// but never interrupts a running hook body, so a hook that ignores its
// context can hold up the whole sequence. Deadlines are the host's business.
//
// # Usage
//
//	reg := lifecycle.NewStageRegister()
//	hooks := lifecycle.NewHookSet()
//	_ = hooks.RegisterStartup(lifecycle.HookFunc("migrate", -10, migrate))
//	_ = hooks.RegisterStartup(lifecycle.HookFunc("warm-cache", 0, warm))
//	subs := lifecycle.NewSubsystemSet()
//	_ = subs.RegisterSubsystem(probeServer)
//
//	orch := lifecycle.NewOrchestrator(reg, hooks, subs, lifecycle.WithLogger(logger))
//	if err := orch.Start(ctx); err != nil {
//	    // stage is now Failed
//	}
//	defer orch.Stop(stopCtx)
package lifecycle
