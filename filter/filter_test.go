package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/seedshift/downloader"
)

var sample = downloader.Torrent{
	Hash:     "abc",
	Name:     "Some.Movie.2023.1080p",
	Category: "movies",
	Tags:     []string{"HD", "cross-seed"},
	SavePath: "/downloads/movies",
	Size:     8 * 1024 * 1024 * 1024,
	Trackers: []string{"https://tracker.example.org/announce"},

	CompletedOn: time.Now().AddDate(0, 0, -10),
}

func TestCompileExprFilter(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{name: "valid expression", expression: `hasTag("hd")`},
		{name: "empty expression", expression: "  ", wantErr: true, errContains: "empty expression"},
		{name: "invalid syntax", expression: `hasTag("unclosed`, wantErr: true},
		{name: "complex expression", expression: `Category == "movies" and Size > gb(4) and not hasTag("skip")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CompileExprFilter(tt.expression)
			if tt.wantErr {
				require.Error(t, err)
				var compErr *CompilationError
				assert.True(t, errors.As(err, &compErr))
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expression, f.String())
		})
	}
}

func TestExprFilter_Evaluate(t *testing.T) {
	tests := []struct {
		expression string
		want       bool
	}{
		{`hasTag("hd")`, true},
		{`hasTag("sd")`, false},
		{`Torrent.Category == "movies"`, true},
		{`Category in ["tv", "anime"]`, false},
		{`icontains(Name, "movie") and Size >= gb(8)`, true},
		{`hasPrefix(SavePath, "/DOWNLOADS")`, true},
		{`hasSuffix(Name, "1080P")`, true},
		{`hasSuffix(Name, "720p")`, false},
		{`daysSince(CompletedOn) >= 7`, true},
		{`CompletedOn < daysAgo(30)`, false},
		{`Name contains "Movie"`, true},
		{`hasTracker("example.org")`, true},
		{`len(Tags) == 2`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			f, err := CompileExprFilter(tt.expression)
			require.NoError(t, err)

			got, err := f.Evaluate(sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprFilter_HelpersCompile(t *testing.T) {
	for _, expression := range []string{
		`hasTag("hd")`,
		`hasTracker("example")`,
		`icontains(Name, "x")`,
		`hasPrefix(Name, "x")`,
		`hasSuffix(Name, "x")`,
		`lower(Name) == upper(Name)`,
		`daysSince(CompletedOn) > 0`,
		`CompletedOn > daysAgo(1)`,
		`daysSince(now()) == 0`,
		`Size > gb(1) + mb(1)`,
	} {
		_, err := CompileExprFilter(expression)
		assert.NoError(t, err, expression)
	}
}

func TestExprFilter_DaysSinceUnknownCompletion(t *testing.T) {
	f, err := CompileExprFilter(`daysSince(CompletedOn) >= 7`)
	require.NoError(t, err)

	got, err := f.Evaluate(downloader.Torrent{Name: "no completion time"})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestExprFilter_NonBoolResult(t *testing.T) {
	f, err := CompileExprFilter(`Name`)
	require.NoError(t, err)

	_, err = f.Evaluate(sample)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, sample.Name, evalErr.Torrent)
}

func TestCompiler_CachesPrograms(t *testing.T) {
	c := NewCompiler()

	f1, err := c.Compile(`hasTag("hd")`)
	require.NoError(t, err)
	f2, err := c.Compile(` hasTag("hd") `)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, 1, c.Size())
}

func TestCompiler_NewEligibility(t *testing.T) {
	c := NewCompiler()

	accept, err := c.NewEligibility("")
	require.NoError(t, err)
	ok, err := accept(downloader.Torrent{})
	require.NoError(t, err)
	assert.True(t, ok)

	onlyTV, err := c.NewEligibility(`Category == "tv"`)
	require.NoError(t, err)
	ok, err = onlyTV(sample)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.NewEligibility(`Category ==`)
	assert.Error(t, err)
}

func TestLRUCache_Evicts(t *testing.T) {
	c := newLRUCache(2)
	a, b, d := &ExprFilter{expr: "a"}, &ExprFilter{expr: "b"}, &ExprFilter{expr: "d"}

	c.Put("a", a)
	c.Put("b", b)
	_, _ = c.Get("a")
	c.Put("d", d)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, c.Size())

	c.Clear()
	assert.Zero(t, c.Size())
}
