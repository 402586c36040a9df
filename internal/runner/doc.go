// Package runner executes named units of work and composes them.
//
// Every unit is a Runnable. An Executor starts a Runnable in the background
// and hands back an Execution that can be waited on and inspected. Series and
// Parallel are Runnables themselves, so composites nest to any depth:
//
//	exec := runner.NewExecutor()
//	build := exec.Series("build", clean, html, styles)
//	dev := exec.Series("default", build, exec.Parallel("serve", watch, server))
//	err := exec.Run(ctx, dev)
//
// A series runs its children strictly one after another, waiting for each
// to complete before the next starts. A fatal child error stops the series;
// an error marked with NonFatal is recorded and the series moves on. A
// parallel composite starts every child before waiting on any of them and
// never cancels siblings when one fails. Both return every recorded child
// error joined together.
package runner
