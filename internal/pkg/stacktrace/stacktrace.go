// Package stacktrace condenses raw goroutine dumps into the frames that
// belong to this repository, so panic logs stay readable.
package stacktrace

import "strings"

// InternalPaths extracts "internal/...foo.go:NN" frame locations from the
// output of runtime/debug.Stack, dropping runtime and third-party frames.
func InternalPaths(stack []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(stack), "\n") {
		if p, ok := internalFrame(strings.TrimSpace(line)); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func internalFrame(line string) (string, bool) {
	at := strings.Index(line, "/internal/")
	if at == -1 {
		return "", false
	}
	ext := strings.Index(line, ".go:")
	if ext == -1 {
		return "", false
	}

	end := ext
	if sp := strings.IndexByte(line[ext:], ' '); sp != -1 {
		end = ext + sp
	} else {
		end = len(line)
	}
	if end <= at {
		return "", false
	}
	return line[at+1 : end], true
}
