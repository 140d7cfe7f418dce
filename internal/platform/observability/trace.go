package observability

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/craftmarket/api/internal/platform/requestctx"
)

const traceparentHeader = "traceparent"

// TraceMiddleware extracts W3C traceparent headers and stores trace metadata
// on the request context so log lines can be correlated with upstream callers.
func TraceMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := parseTraceparent(r.Header.Get(traceparentHeader))
			if ok {
				ctx := requestctx.WithTrace(r.Context(), info)
				r = r.WithContext(ctx)
				w.Header().Set(traceparentHeader, formatTraceparent(info))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseTraceparent handles the version-00 format: 00-<trace-id>-<span-id>-<flags>.
func parseTraceparent(header string) (requestctx.TraceInfo, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return requestctx.TraceInfo{}, false
	}

	parts := strings.Split(header, "-")
	if len(parts) != 4 || parts[0] != "00" {
		return requestctx.TraceInfo{}, false
	}

	traceID := strings.ToLower(parts[1])
	spanID := strings.ToLower(parts[2])
	if len(traceID) != 32 || !isHex(traceID) || traceID == strings.Repeat("0", 32) {
		return requestctx.TraceInfo{}, false
	}
	if len(spanID) != 16 || !isHex(spanID) || spanID == strings.Repeat("0", 16) {
		return requestctx.TraceInfo{}, false
	}

	flags := strings.ToLower(parts[3])
	if len(flags) != 2 || !isHex(flags) {
		return requestctx.TraceInfo{}, false
	}

	return requestctx.TraceInfo{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags == "01",
	}, true
}

func formatTraceparent(info requestctx.TraceInfo) string {
	flags := "00"
	if info.Sampled {
		flags = "01"
	}
	return fmt.Sprintf("00-%s-%s-%s", info.TraceID, info.SpanID, flags)
}

func isHex(value string) bool {
	if value == "" || len(value)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
