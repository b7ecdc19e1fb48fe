package utils

import "sync"

// gdalMu serialises GDAL calls; the driver registry and VSI memory files are
// not safe for concurrent use.
var gdalMu sync.Mutex

func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}
