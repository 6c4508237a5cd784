// ABOUTME: Ordered field fallbacks used to turn a remote reply into tool text.
// ABOUTME: The first present field wins; otherwise the whole reply is stringified.

package invoker

import (
	"encoding/json"

	"github.com/2389/mac-studio-mcp/internal/remote"
)

// fallback lists reply fields to try in order.
type fallback []string

var (
	// stdoutChain is used by list_files, read_file and get_system_info.
	stdoutChain = fallback{"stdout", "error"}
	// stderrChain is used for write_file failures.
	stderrChain = fallback{"stderr"}
)

// text returns the first present field, or the compact reply.
func (f fallback) text(res *remote.Result) string {
	for _, key := range f {
		if v, ok := res.Field(key); ok {
			return stringify(v)
		}
	}
	return res.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// returnCode reports the reply's returncode, if it is an integer.
func returnCode(res *remote.Result) (int64, bool) {
	v, ok := res.Field("returncode")
	if !ok {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
