package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/filter"
	"github.com/standardbeagle/proptrim/internal/security"
	"github.com/standardbeagle/proptrim/internal/transform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const componentSource = `import PropTypes from "prop-types";

function Button() {
  return <button />;
}

Button.propTypes = {
  label: PropTypes.string,
};

export default Button;
`

const plainSource = `export const add = (a, b) => a + b;
`

const brokenSource = `const = ;
`

func newEngine(t *testing.T, opts transform.Options) *transform.Engine {
	t.Helper()
	e, err := transform.New(opts)
	require.NoError(t, err)
	return e
}

func newRunner(t *testing.T, opts RunnerOptions) *Runner {
	t.Helper()
	if opts.Engine == nil {
		opts.Engine = newEngine(t, transform.Options{})
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

// project lays out a small source tree and returns its root
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/Button.jsx":               componentSource,
		"src/util.js":                  plainSource,
		"src/broken.js":                brokenSource,
		"src/README.md":                "# not javascript\n",
		"node_modules/lib/Widget.js":   componentSource,
		"src/legacy/OldButton.jsx":     componentSource,
		"src/nested/deep/Deep.test.js": componentSource,
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func byPath(s *Summary, root string) map[string]FileResult {
	out := make(map[string]FileResult, len(s.Files))
	for _, f := range s.Files {
		rel, _ := filepath.Rel(root, f.Path)
		out[filepath.ToSlash(rel)] = f
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(RunnerOptions{})
	assert.Error(t, err)

	_, err = New(RunnerOptions{Engine: newEngine(t, transform.Options{}), Write: true, OutDir: "out"})
	require.Error(t, err)
	assert.True(t, pterrors.IsConfigError(err))
}

func TestRun_CheckMode(t *testing.T) {
	root := project(t)
	f, err := filter.New(root, nil, []string{"**/node_modules/**", "**/*.test.js"}, regexp.MustCompile("(?i)legacy"))
	require.NoError(t, err)

	r := newRunner(t, RunnerOptions{Filter: f, Root: root, Workers: 4})
	summary, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)

	files := byPath(summary, root)
	assert.Equal(t, OutcomeChanged, files["src/Button.jsx"].Outcome)
	assert.Equal(t, OutcomeUnchanged, files["src/util.js"].Outcome)
	assert.Equal(t, OutcomeParseFailed, files["src/broken.js"].Outcome)
	assert.Equal(t, OutcomeSkipped, files["src/nested/deep/Deep.test.js"].Outcome)
	assert.NotContains(t, files, "node_modules/lib/Widget.js", "pruned directories are not walked")
	assert.NotContains(t, files, "src/legacy/OldButton.jsx", "ignored directories are not walked")
	assert.NotContains(t, files, "src/README.md")

	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.ParseFailed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Errors)
	assert.NoError(t, summary.Err())

	require.Len(t, files["src/Button.jsx"].Sites, 1)
	assert.Equal(t, "Button", files["src/Button.jsx"].Sites[0].Component)
	assert.Empty(t, files["src/Button.jsx"].Output, "check mode writes nothing")
	assert.Equal(t, componentSource, readFile(t, filepath.Join(root, "src", "Button.jsx")))
}

func TestRun_WriteInPlace(t *testing.T) {
	root := project(t)
	r := newRunner(t, RunnerOptions{Root: root, Write: true})

	button := filepath.Join(root, "src", "Button.jsx")
	broken := filepath.Join(root, "src", "broken.js")
	summary, err := r.Run(context.Background(), []string{button, broken})
	require.NoError(t, err)

	files := byPath(summary, root)
	assert.Equal(t, button, files["src/Button.jsx"].Output)

	got := readFile(t, button)
	assert.NotContains(t, got, "Button.propTypes")
	assert.Contains(t, got, "export default Button;")
	assert.Equal(t, brokenSource, readFile(t, broken), "parse failures pass through untouched")
}

func TestRun_OutDirMirrorsTree(t *testing.T) {
	root := project(t)
	out := filepath.Join(t.TempDir(), "clean")
	r := newRunner(t, RunnerOptions{Root: root, OutDir: out})

	_, err := r.Run(context.Background(), []string{filepath.Join(root, "src")})
	require.NoError(t, err)

	assert.NotContains(t, readFile(t, filepath.Join(out, "src", "Button.jsx")), "propTypes")
	assert.Equal(t, plainSource, readFile(t, filepath.Join(out, "src", "util.js")))
	assert.Equal(t, brokenSource, readFile(t, filepath.Join(out, "src", "broken.js")))
	assert.Equal(t, componentSource, readFile(t, filepath.Join(root, "src", "Button.jsx")), "sources untouched")
}

func TestRun_SourceMaps(t *testing.T) {
	root := project(t)
	out := filepath.Join(t.TempDir(), "clean")
	r := newRunner(t, RunnerOptions{
		Engine: newEngine(t, transform.Options{SourceMap: true}),
		Root:   root,
		OutDir: out,
	})

	_, err := r.Run(context.Background(), []string{filepath.Join(root, "src", "Button.jsx")})
	require.NoError(t, err)

	code := readFile(t, filepath.Join(out, "src", "Button.jsx"))
	assert.True(t, strings.HasSuffix(code, "//# sourceMappingURL=Button.jsx.map\n"))

	var m struct {
		Version int      `json:"version"`
		File    string   `json:"file"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(out, "src", "Button.jsx.map"))), &m))
	assert.Equal(t, 3, m.Version)
	assert.Equal(t, "Button.jsx", m.File)
	require.Len(t, m.Sources, 1)
	assert.True(t, strings.HasSuffix(m.Sources[0], "src/Button.jsx"))
	assert.True(t, strings.HasPrefix(m.Sources[0], "../"), "source is relative to the map: %s", m.Sources[0])
}

func TestRun_Cache(t *testing.T) {
	root := project(t)
	r := newRunner(t, RunnerOptions{Root: root, CacheSize: 16})
	button := filepath.Join(root, "src", "Button.jsx")

	first, err := r.Run(context.Background(), []string{button})
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	assert.False(t, first.Files[0].Cached)

	second, err := r.Run(context.Background(), []string{button})
	require.NoError(t, err)
	require.Len(t, second.Files, 1)
	assert.True(t, second.Files[0].Cached)
	assert.Equal(t, OutcomeChanged, second.Files[0].Outcome)

	require.NoError(t, os.WriteFile(button, []byte(plainSource), 0o644))
	third, err := r.Run(context.Background(), []string{button})
	require.NoError(t, err)
	assert.False(t, third.Files[0].Cached, "new content misses the cache")
	assert.Equal(t, OutcomeUnchanged, third.Files[0].Outcome)
}

func TestRun_CacheKeyIncludesOptions(t *testing.T) {
	remove := newRunner(t, RunnerOptions{Engine: newEngine(t, transform.Options{Mode: transform.ModeRemove})})
	wrap := newRunner(t, RunnerOptions{Engine: newEngine(t, transform.Options{Mode: transform.ModeWrap})})

	content := []byte(componentSource)
	assert.NotEqual(t, remove.cacheKey("a.js", content), wrap.cacheKey("a.js", content))
	assert.NotEqual(t, remove.cacheKey("a.js", content), remove.cacheKey("b.js", content))
	assert.Equal(t, remove.cacheKey("a.js", content), remove.cacheKey("a.js", content))
}

func TestRun_MaxFileSize(t *testing.T) {
	root := project(t)
	r := newRunner(t, RunnerOptions{Root: root, MaxFileSize: 10})

	summary, err := r.Run(context.Background(), []string{filepath.Join(root, "src", "Button.jsx")})
	require.NoError(t, err)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, OutcomeSkipped, summary.Files[0].Outcome)
	assert.Contains(t, summary.Files[0].Reason, "larger than")
}

func TestRun_ValidatorSkipsMinified(t *testing.T) {
	root := t.TempDir()
	bundle := filepath.Join(root, "bundle.js")
	require.NoError(t, os.WriteFile(bundle, []byte("var a=1;"+strings.Repeat("a.b=c;", 500)+"\n"), 0o644))

	r := newRunner(t, RunnerOptions{Root: root, Validator: security.NewFileValidator(1)})
	summary, err := r.Run(context.Background(), []string{bundle})
	require.NoError(t, err)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, OutcomeSkipped, summary.Files[0].Outcome)
	assert.Contains(t, summary.Files[0].Reason, "minified")
}

func TestRun_MissingPath(t *testing.T) {
	r := newRunner(t, RunnerOptions{})
	_, err := r.Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.js")})
	require.Error(t, err)
	var fe *pterrors.FileError
	assert.ErrorAs(t, err, &fe)
}

func TestRun_Cancelled(t *testing.T) {
	root := project(t)
	r := newRunner(t, RunnerOptions{Root: root})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx, []string{filepath.Join(root, "src")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Changed)
}

func TestSummary_Err(t *testing.T) {
	s := &Summary{}
	s.add(FileResult{Path: "a.js", Outcome: OutcomeChanged})
	assert.NoError(t, s.Err())

	s.add(FileResult{Path: "b.js", Outcome: OutcomeError, Err: os.ErrPermission})
	assert.ErrorIs(t, s.Err(), os.ErrPermission)
	assert.Equal(t, 1, s.Errors)
}

func TestWithMapComment(t *testing.T) {
	assert.Equal(t, "a\n//# sourceMappingURL=a.js.map\n", withMapComment("a", "a.js.map"))
	assert.Equal(t, "a\n//# sourceMappingURL=a.js.map\n", withMapComment("a\n", "a.js.map"))
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	ready := make(chan struct{})
	batches := make(chan *Summary, 8)
	r := newRunner(t, RunnerOptions{
		Root:          root,
		Write:         true,
		WatchDebounce: 20 * time.Millisecond,
		OnWatchStart:  func(string) { close(ready) },
		OnBatch: func(s *Summary) {
			select {
			case batches <- s:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, root) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}

	button := filepath.Join(src, "Button.jsx")
	require.NoError(t, os.WriteFile(button, []byte(componentSource), 0o644))

	deadline := time.After(5 * time.Second)
	changed := false
	for !changed {
		select {
		case s := <-batches:
			changed = s.Changed > 0
		case <-deadline:
			t.Fatal("no batch rewrote the file")
		}
	}
	assert.NotContains(t, readFile(t, button), "Button.propTypes")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_InPlaceWritesDoNotLoop(t *testing.T) {
	root := t.TempDir()

	ready := make(chan struct{})
	batches := make(chan *Summary, 16)
	r := newRunner(t, RunnerOptions{
		Engine:        newEngine(t, transform.Options{Mode: transform.ModeUnsafeWrap}),
		Root:          root,
		Write:         true,
		WatchDebounce: 20 * time.Millisecond,
		OnWatchStart:  func(string) { close(ready) },
		OnBatch: func(s *Summary) {
			select {
			case batches <- s:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, root) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}

	button := filepath.Join(root, "Button.jsx")
	require.NoError(t, os.WriteFile(button, []byte(componentSource), 0o644))

	deadline := time.After(5 * time.Second)
	changed := 0
	for changed == 0 {
		select {
		case s := <-batches:
			changed += s.Changed
		case <-deadline:
			t.Fatal("no batch rewrote the file")
		}
	}

	// Give the runner's own write time to come back as an event
	settle := time.After(500 * time.Millisecond)
	for waiting := true; waiting; {
		select {
		case s := <-batches:
			changed += s.Changed
		case <-settle:
			waiting = false
		}
	}

	assert.Equal(t, 1, changed, "the rewritten file must not be rewritten again")
	rewritten := readFile(t, button)
	assert.Contains(t, rewritten, `? Button.propTypes = {`)
	assert.Contains(t, rewritten, "label: PropTypes.string")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestIsOwnWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Button.jsx")
	require.NoError(t, os.WriteFile(path, []byte(componentSource), 0o644))
	r := newRunner(t, RunnerOptions{Root: root, Write: true})

	assert.False(t, r.isOwnWrite(path), "nothing written yet")

	summary, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Changed)
	assert.True(t, r.isOwnWrite(path))

	require.NoError(t, os.WriteFile(path, []byte(componentSource), 0o644))
	assert.False(t, r.isOwnWrite(path), "an external edit is not the runner's write")
}
