// ABOUTME: Shell command templates for tools that run through the remote /run endpoint.
// ABOUTME: All single-quoting goes through quote so there is one place to audit.

package invoker

import (
	"strconv"
	"strings"
)

// SystemInfoCommand is the diagnostic script run by get_system_info.
const SystemInfoCommand = `echo '=== HOSTNAME ===' && hostname && \
echo '=== UPTIME ===' && uptime && \
echo '=== CPU ===' && sysctl -n machdep.cpu.brand_string && \
echo '=== MEMORY ===' && vm_stat | head -5 && \
echo '=== DISK ===' && df -h / && \
echo '=== TOP PROCESSES ===' && ps aux | head -10`

// defaultListPath is listed when list_files gets no path.
const defaultListPath = "~"

// quote wraps s in single quotes for a POSIX shell, rewriting each embedded
// quote as '\''.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// listFilesCommand leaves path unquoted so that ~ and globs still expand.
func listFilesCommand(path string) string {
	if path == "" {
		path = defaultListPath
	}
	return "ls -la " + path
}

// readFileCommand tails for negative lines, heads for positive, cats for zero.
func readFileCommand(path string, lines int) string {
	switch {
	case lines < 0:
		return "tail -n " + strconv.Itoa(-lines) + " " + quote(path)
	case lines > 0:
		return "head -n " + strconv.Itoa(lines) + " " + quote(path)
	default:
		return "cat " + quote(path)
	}
}

func writeFileCommand(path, content string, appendMode bool) string {
	op := ">"
	if appendMode {
		op = ">>"
	}
	return "echo " + quote(content) + " " + op + " " + quote(path)
}
