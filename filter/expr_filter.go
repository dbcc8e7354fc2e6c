package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/seedshift/downloader"
)

// ExprFilter represents a compiled expr filter
type ExprFilter struct {
	program *vm.Program
	expr    string
}

// CompileExprFilter compiles an expr filter expression
func CompileExprFilter(expression string) (*ExprFilter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression", Position: -1}
	}

	program, err := expr.Compile(expression,
		expr.Env(buildEnv(downloader.Torrent{})),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     err.Error(),
			Position:   -1,
			Err:        err,
		}
	}

	return &ExprFilter{
		program: program,
		expr:    expression,
	}, nil
}

// Evaluate runs the filter against a torrent.
func (f *ExprFilter) Evaluate(t downloader.Torrent) (bool, error) {
	result, err := expr.Run(f.program, buildEnv(t))
	if err != nil {
		return false, &EvaluationError{Expression: f.expr, Torrent: t.Name, Reason: err.Error(), Err: err}
	}

	matched, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{
			Expression: f.expr,
			Torrent:    t.Name,
			Reason:     fmt.Sprintf("expression returned %T, want bool", result),
		}
	}
	return matched, nil
}

// String returns the original expression
func (f *ExprFilter) String() string {
	return f.expr
}

func buildEnv(t downloader.Torrent) map[string]any {
	return map[string]any{
		"Torrent":  t,
		"Name":     t.Name,
		"Hash":     t.Hash,
		"Category": t.Category,
		"Tags":     t.Tags,
		"SavePath": t.SavePath,
		"Size":     t.Size,
		"State":    t.State,
		"Trackers": t.Trackers,

		"CompletedOn": t.CompletedOn,

		"hasTag": t.HasTag,
		"hasTracker": func(substr string) bool {
			for _, tr := range t.Trackers {
				if strings.Contains(strings.ToLower(tr), strings.ToLower(substr)) {
					return true
				}
			}
			return false
		},

		// Size helpers
		"gb": func(n float64) int64 {
			return int64(n * 1024 * 1024 * 1024)
		},
		"mb": func(n float64) int64 {
			return int64(n * 1024 * 1024)
		},

		// Date helpers
		// An unknown time counts as now so age filters do not match it.
		"daysSince": func(t time.Time) int {
			if t.IsZero() {
				return 0
			}
			return int(time.Since(t).Hours() / 24)
		},
		"daysAgo": func(days int) time.Time {
			return time.Now().AddDate(0, 0, -days)
		},

		// String helpers, case-insensitive. contains, startsWith and
		// endsWith are operators in expr and cannot be used as names.
		"icontains": func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
		"hasPrefix": func(str, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
		},
		"hasSuffix": func(str, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,

		"now": time.Now,
	}
}
