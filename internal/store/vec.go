package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// vec.Auto() registers it as an auto-loadable extension; detectVecModule
	// still probes at open time so builds without the extension degrade to
	// brute-force search instead of failing.
	vec.Auto()
}
