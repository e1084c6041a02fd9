// Package testutil holds small helpers shared by examples and tests.
package testutil

import "os"

// RemoveAll removes a fixture tree, ignoring errors. Examples defer it on
// their temp storage roots:
//
//	defer testutil.RemoveAll(tmpDir)
func RemoveAll(path string) { _ = os.RemoveAll(path) }
