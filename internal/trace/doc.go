// Package trace records what the kestrel back end is doing while it runs.
//
// Tracing is off unless the CLI is given a destination:
//
//	kestrel build --trace=- --trace-level=detail
//
// Events are grouped by scope. ScopeDriver covers whole commands and units,
// ScopePass the lowering passes and the emit and link steps, ScopeModule one
// namespace walk and ScopeNode one function body. The level decides which
// scopes reach the tracer: phase keeps driver and pass events, detail adds
// namespaces and debug adds function bodies.
//
// Tracers travel through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, t)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "bodies", parent)
//	defer sp.End("")
//
// A RingTracer keeps the last events in memory so that a failed build can
// dump them after the fact.
package trace
