package app

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// The default cgroup limit_in_bytes, which indicates memory is not
	// restricted.
	// See https://unix.stackexchange.com/questions/420906/what-is-the-value-for-the-cgroups-limit-in-bytes-if-the-memory-is-not-restricted
	unrestrictedMemoryLimit = 9223372036854771712

	cgroupV1MemoryLimitLocation = "/sys/fs/cgroup/memory/memory.limit_in_bytes"
	cgroupV2MemoryLimitLocation = "/sys/fs/cgroup/memory.max"

	maxBallastCapacity = 0.5
)

// totalMemory returns the memory available to the process, respecting
// container limits.
func totalMemory() uint64 {
	total := memory.TotalMemory()

	for _, location := range []string{cgroupV2MemoryLimitLocation, cgroupV1MemoryLimitLocation} {
		raw, err := os.ReadFile(location)
		if err != nil {
			continue
		}

		limit, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil || limit == unrestrictedMemoryLimit {
			continue
		}
		if limit < total {
			total = limit
		}
		break
	}
	return total
}

func newBallast(capacity float32) []byte {
	if capacity > maxBallastCapacity {
		capacity = maxBallastCapacity
	}
	if capacity <= 0 {
		return nil
	}
	return make([]byte, uint64(capacity*float32(totalMemory())))
}
