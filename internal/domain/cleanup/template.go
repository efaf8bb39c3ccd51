// Package cleanup holds the pure logic of one cleanup firing: rendering the
// statement template, proving the rendered statement safe, and tracking
// execution progress.
package cleanup

import (
	"regexp"
	"sort"
	"strings"
	"time"

	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

// IntervalEndLayout is the wire format for data_interval_end inside rendered
// statements.
const IntervalEndLayout = "2006-01-02 15:04:05"

// placeholderPattern matches `{{ name }}` placeholders. Only literal
// substitution is supported; there are no control-flow constructs.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render substitutes named parameters into a statement template. The merged
// context is params plus data_interval_end; referencing a name absent from
// the merged context is an error.
func Render(template string, params map[string]string, dataIntervalEnd time.Time) (string, error) {
	context := make(map[string]string, len(params)+1)
	for k, v := range params {
		context[k] = v
	}
	context["data_interval_end"] = dataIntervalEnd.UTC().Format(IntervalEndLayout)

	missing := map[string]struct{}{}
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := context[name]
		if !ok {
			missing[name] = struct{}{}
			return match
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", apperrors.Renderf("undefined template parameter(s): %s", strings.Join(names, ", "))
	}

	return rendered, nil
}
