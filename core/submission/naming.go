package submission

import (
	"fmt"
	"path/filepath"
	"strings"
)

// nameAllocator hands out collision-free archive entry names. The first use of
// a base name is returned verbatim; later uses get an incrementing numeric
// suffix before the extension (name_2.ext, name_3.ext, ...). Allocation is
// deterministic for a fixed request order, so re-running an export over
// unchanged data reproduces identical archive contents.
type nameAllocator map[string]int

func (alloc nameAllocator) allocate(name string) string {
	count, used := alloc[name]
	if !used {
		alloc[name] = 1
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		count++
		candidate := fmt.Sprintf("%s_%d%s", base, count, ext)
		if _, taken := alloc[candidate]; !taken {
			alloc[name] = count
			alloc[candidate] = 1
			return candidate
		}
	}
}
