// Package lifecycle provides the session state machine.
//
// A session moves Idle -> Connected -> Running and ends in Stopped. Stop is
// allowed from every non-terminal state; Stopped is terminal, so a second
// stop is reported with ErrStopped and changes nothing.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, eventEmitter)
//
//	if err := manager.TransitionTo(lifecycle.StateConnected, "dialed"); err != nil {
//	    return err
//	}
//
//	manager.AddWorker()
//	go func() {
//	    defer manager.WorkerDone()
//	    // ...
//	}()
//
//	_ = manager.TransitionTo(lifecycle.StateStopped, "stop requested")
//	<-manager.Done() // every worker has exited
//
// Backoff spaces connection retries.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
