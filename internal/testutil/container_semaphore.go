// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

// EnvContainerParallel overrides how many container cross-checks tests may
// run at once.
const EnvContainerParallel = "FREEZECHECK_TEST_CONTAINER_PARALLEL"

var containerSlots = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism(os.Getenv(EnvContainerParallel)))
})

// AcquireContainer blocks until a container slot is free and releases it
// when t finishes. Engines on small CI runners hang instead of failing when
// too many containers start together.
func AcquireContainer(t testing.TB) {
	t.Helper()
	slots := containerSlots()
	slots <- struct{}{}
	t.Cleanup(func() { <-slots })
}

// containerParallelism parses the override, falling back to
// min(GOMAXPROCS, 2).
func containerParallelism(override string) int {
	if n, err := strconv.Atoi(override); err == nil && n > 0 {
		return n
	}
	return min(runtime.GOMAXPROCS(0), 2)
}
