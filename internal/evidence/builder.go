// Package evidence summarizes tool calls and their outputs into typed
// provenance records.
package evidence

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// maxAutoExtracted caps the url and file records mined from a result.
const maxAutoExtracted = 10

// previewLimit bounds the result preview in the tool evidence summary.
const previewLimit = 100

var urlPattern = regexp.MustCompile(`^https?://`)

// Builder produces evidence records for completed invocations.
type Builder struct {
	// now is swappable for tests.
	now func() time.Time
}

// NewBuilder returns a builder using the wall clock.
func NewBuilder() *Builder {
	return &Builder{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock (tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build combines adapter-provided evidence with derived records:
// an always-present tool record, auto-extracted url/file records (capped),
// and a latency metric when the call took measurable time.
func (b *Builder) Build(spec *models.ToolSpec, args map[string]any, result any,
	adapterEvidence []models.Evidence, duration time.Duration) []models.Evidence {

	createdAt := b.now()
	records := make([]models.Evidence, 0, len(adapterEvidence)+4)
	records = append(records, adapterEvidence...)

	records = append(records, models.Evidence{
		Type:      models.EvidenceTool,
		Ref:       spec.Name + "@" + spec.Version,
		Summary:   b.callSummary(args, result, duration),
		CreatedAt: createdAt,
	})

	urls, files := extract(result)
	for _, u := range urls {
		records = append(records, models.Evidence{
			Type:      models.EvidenceURL,
			Ref:       u,
			Summary:   "URL referenced in result",
			CreatedAt: createdAt,
		})
	}
	for _, f := range files {
		records = append(records, models.Evidence{
			Type:      models.EvidenceFile,
			Ref:       f,
			Summary:   "file referenced in result",
			CreatedAt: createdAt,
		})
	}

	if duration > 0 {
		records = append(records, models.Evidence{
			Type:      models.EvidenceMetric,
			Ref:       "latency:" + spec.Name,
			Summary:   fmt.Sprintf("%dms", duration.Milliseconds()),
			CreatedAt: createdAt,
		})
	}
	return records
}

func (b *Builder) callSummary(args map[string]any, result any, duration time.Duration) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	preview := ""
	if raw, err := json.Marshal(result); err == nil {
		preview = string(raw)
	} else {
		preview = fmt.Sprintf("%v", result)
	}
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	return fmt.Sprintf("args=[%s] duration=%dms result=%s",
		strings.Join(keys, ","), duration.Milliseconds(), preview)
}

// extract walks the result and collects URL-looking and path-looking
// strings. Map keys are visited in sorted order so extraction order is
// stable for a given result shape.
func extract(result any) (urls, files []string) {
	var walk func(value any)
	walk = func(value any) {
		if len(urls) >= maxAutoExtracted && len(files) >= maxAutoExtracted {
			return
		}
		switch v := value.(type) {
		case string:
			if urlPattern.MatchString(v) {
				if len(urls) < maxAutoExtracted {
					urls = append(urls, v)
				}
			} else if looksLikeFilePath(v) {
				if len(files) < maxAutoExtracted {
					files = append(files, v)
				}
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for key := range v {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				walk(v[key])
			}
		case []any:
			for _, entry := range v {
				walk(entry)
			}
		}
	}
	walk(result)
	return urls, files
}

// looksLikeFilePath accepts absolute or ./-prefixed paths whose last
// segment contains an extension separator.
func looksLikeFilePath(s string) bool {
	if !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "./") {
		return false
	}
	if strings.ContainsAny(s, " \n\t") {
		return false
	}
	last := s[strings.LastIndex(s, "/")+1:]
	return strings.Contains(last, ".")
}
