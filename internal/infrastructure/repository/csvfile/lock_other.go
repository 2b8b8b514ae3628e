//go:build !unix

package csvfile

import "os"

// Cross-process locking is only implemented on unix; elsewhere the
// in-process mutexes are the only guard.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
