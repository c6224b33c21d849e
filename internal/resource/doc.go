// Package resource limits the background work of the column store.
//
// Analyse and index rebuild scan whole columns. The Controller bounds how
// many such scans run at once, how fast they read, and how much memory
// their scratch state may hold:
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 2,
//	    ScanBytesPerSec:      64 << 20,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// All methods are safe for concurrent use, and a nil *Controller imposes no
// limits.
package resource
