// Package runner applies the rewrite engine to files on disk: it expands
// paths, filters them, rewrites them concurrently through a content-keyed
// cache and writes the results in place or into a mirror directory.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/proptrim/internal/debug"
	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/filter"
	"github.com/standardbeagle/proptrim/internal/parser"
	"github.com/standardbeagle/proptrim/internal/security"
	"github.com/standardbeagle/proptrim/internal/splice"
	"github.com/standardbeagle/proptrim/internal/transform"
)

// Outcome classifies what happened to one file
type Outcome string

const (
	OutcomeChanged     Outcome = "changed"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeParseFailed Outcome = "parse-failed"
	OutcomeError       Outcome = "error"
)

// FileResult reports one file of a run
type FileResult struct {
	Path           string
	Outcome        Outcome
	Output         string // Where the result was written, if anywhere
	Sites          []transform.Site
	RemovedImports []string
	Cached         bool
	Reason         string
	Err            error
}

// Summary counts the outcomes of a run
type Summary struct {
	Files       []FileResult
	Changed     int
	Unchanged   int
	Skipped     int
	ParseFailed int
	Errors      int
	Duration    time.Duration
}

func (s *Summary) add(r FileResult) {
	s.Files = append(s.Files, r)
	switch r.Outcome {
	case OutcomeChanged:
		s.Changed++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeParseFailed:
		s.ParseFailed++
	case OutcomeError:
		s.Errors++
	}
}

// Err joins the errors of every failed file, or returns nil
func (s *Summary) Err() error {
	var errs []error
	for _, f := range s.Files {
		if f.Outcome == OutcomeError && f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return pterrors.NewMultiError(errs).ErrorOrNil()
}

// RunnerOptions configures a Runner
type RunnerOptions struct {
	Engine *transform.Engine
	Filter *filter.Filter // nil accepts every file
	Root   string         // Base for relative output paths and watch mode

	// Validator screens file contents before parsing; nil accepts everything
	Validator *security.FileValidator

	Workers     int   // 0 = one
	CacheSize   int   // 0 disables the result cache
	MaxFileSize int64 // 0 = no limit

	// Write rewrites files in place. OutDir mirrors every processed file
	// under a separate directory instead. With neither, nothing is written.
	Write  bool
	OutDir string

	WatchDebounce time.Duration

	// OnWatchStart is called once every watch is installed
	OnWatchStart func(root string)
	// OnBatch receives the summary of every watch-mode batch
	OnBatch func(*Summary)
}

// Runner is safe for concurrent use
type Runner struct {
	opts        RunnerOptions
	fingerprint string
	cache       *lru.Cache[uint64, *transform.Result]

	writeMu sync.Mutex
	written map[string]uint64 // in-place target -> xxhash of the bytes written
}

func New(opts RunnerOptions) (*Runner, error) {
	if opts.Engine == nil {
		return nil, errors.New("runner: engine is required")
	}
	if opts.Write && opts.OutDir != "" {
		return nil, pterrors.NewConfigError("out_dir", opts.OutDir,
			errors.New("in-place writing and an output directory are mutually exclusive"))
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = 100 * time.Millisecond
	}
	if opts.Root == "" {
		opts.Root = "."
	}

	r := &Runner{
		opts:        opts,
		fingerprint: opts.Engine.Options().Fingerprint(),
		written:     make(map[string]uint64),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[uint64, *transform.Result](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Run rewrites every file under paths. Files that fail to parse pass through
// untouched; per-file failures are reported in the summary and never stop
// the run. The returned error is the context's when the run was cancelled.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	started := time.Now()

	files, skipped, err := r.collect(paths)
	if err != nil {
		return nil, err
	}
	debug.LogRunner("collected %d files (%d filtered) from %d paths\n", len(files), len(skipped), len(paths))

	summary, err := r.process(ctx, files)
	for _, s := range skipped {
		summary.add(s)
	}
	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Path < summary.Files[j].Path })
	summary.Duration = time.Since(started)
	return summary, err
}

func (r *Runner) process(ctx context.Context, files []string) (*Summary, error) {
	results := make([]FileResult, len(files))
	done := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.processFile(path)
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	summary := &Summary{}
	for i := range results {
		if done[i] {
			summary.add(results[i])
		}
	}
	return summary, err
}

// collect expands directories and applies the filter. Explicitly named files
// are kept whatever their extension; walked files must be JavaScript-family.
func (r *Runner) collect(paths []string) ([]string, []FileResult, error) {
	var files []string
	var skipped []FileResult
	seen := make(map[string]bool)

	accept := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		if r.opts.Filter != nil && !r.opts.Filter.Match(path) {
			skipped = append(skipped, FileResult{Path: path, Outcome: OutcomeSkipped, Reason: "filtered"})
			return
		}
		files = append(files, path)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, pterrors.NewFileError("stat", p, err)
		}
		if !info.IsDir() {
			accept(filepath.Clean(p))
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				debug.LogRunner("walk %s: %v\n", path, err)
				return nil
			}
			if d.IsDir() {
				if path != p && r.opts.Filter != nil && r.opts.Filter.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if parser.IsSupportedFile(path) {
				accept(path)
			}
			return nil
		})
		if err != nil {
			return nil, nil, pterrors.NewFileError("walk", p, err)
		}
	}
	return files, skipped, nil
}

func (r *Runner) processFile(path string) FileResult {
	res := FileResult{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		res.Outcome, res.Err = OutcomeError, pterrors.NewFileError("stat", path, err)
		return res
	}
	if r.opts.MaxFileSize > 0 && info.Size() > r.opts.MaxFileSize {
		res.Outcome = OutcomeSkipped
		res.Reason = fmt.Sprintf("larger than %d bytes", r.opts.MaxFileSize)
		return res
	}

	content, err := os.ReadFile(path)
	if err != nil {
		res.Outcome, res.Err = OutcomeError, pterrors.NewFileError("read", path, err)
		return res
	}

	if r.opts.Validator != nil {
		if err := r.opts.Validator.Validate(path, content); err != nil {
			debug.LogRunner("skipping %s: %v\n", path, err)
			res.Outcome, res.Reason = OutcomeSkipped, err.Error()
			return res
		}
	}

	result, cached, err := r.rewrite(content, path)
	res.Cached = cached
	switch {
	case transform.IsParseFailure(err):
		res.Outcome, res.Reason = OutcomeParseFailed, err.Error()
		if err := r.passThrough(&res, content, info.Mode().Perm()); err != nil {
			res.Outcome, res.Err = OutcomeError, err
		}
		return res
	case err != nil:
		res.Outcome, res.Err = OutcomeError, err
		return res
	}

	res.Sites = result.Sites
	res.RemovedImports = result.RemovedImports
	if !result.Changed {
		res.Outcome = OutcomeUnchanged
		if err := r.passThrough(&res, content, info.Mode().Perm()); err != nil {
			res.Outcome, res.Err = OutcomeError, err
		}
		return res
	}

	res.Outcome = OutcomeChanged
	if target := r.target(path); target != "" {
		if err := r.writeOutput(path, target, result, info.Mode().Perm()); err != nil {
			res.Outcome, res.Err = OutcomeError, err
			return res
		}
		res.Output = target
	}
	return res
}

// rewrite consults the cache before running the engine. Parse failures are
// not cached.
func (r *Runner) rewrite(content []byte, id string) (*transform.Result, bool, error) {
	key := r.cacheKey(id, content)
	if r.cache != nil {
		if result, ok := r.cache.Get(key); ok {
			debug.LogRunner("%s: cache hit\n", id)
			return result, true, nil
		}
	}

	result, err := r.opts.Engine.Rewrite(content, id)
	if err != nil {
		return nil, false, err
	}
	if r.cache != nil {
		r.cache.Add(key, result)
	}
	return result, false, nil
}

func (r *Runner) cacheKey(id string, content []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.fingerprint)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(id)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(content)
	return d.Sum64()
}

// target returns where the rewritten text of path goes, or "" when the run
// writes nothing
func (r *Runner) target(path string) string {
	switch {
	case r.opts.Write:
		return path
	case r.opts.OutDir != "":
		rel, err := filepath.Rel(r.opts.Root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = filepath.Base(path)
		}
		return filepath.Join(r.opts.OutDir, rel)
	}
	return ""
}

// passThrough copies untouched text into the output directory so the mirror
// is complete. In-place and check runs write nothing.
func (r *Runner) passThrough(res *FileResult, content []byte, perm fs.FileMode) error {
	if r.opts.OutDir == "" {
		return nil
	}
	target := r.target(res.Path)
	if err := writeFile(target, content, perm); err != nil {
		return err
	}
	res.Output = target
	return nil
}

func (r *Runner) writeOutput(source, target string, result *transform.Result, perm fs.FileMode) error {
	code := result.Code
	if result.Map != nil {
		mapPath := target + ".map"
		data, err := relocateMap(result.Map, source, target).ToJSON()
		if err != nil {
			return fmt.Errorf("encode source map for %s: %w", source, err)
		}
		if err := writeFile(mapPath, data, 0o644); err != nil {
			return err
		}
		code = withMapComment(code, filepath.Base(mapPath))
	}

	// Serialize in-place writes so a watcher sees one event per file
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := writeFile(target, []byte(code), perm); err != nil {
		return err
	}
	if r.opts.Write {
		r.written[target] = xxhash.Sum64String(code)
	}
	return nil
}

// isOwnWrite reports whether path still holds exactly the bytes the runner
// last wrote to it in place
func (r *Runner) isOwnWrite(path string) bool {
	r.writeMu.Lock()
	sum, ok := r.written[path]
	r.writeMu.Unlock()
	if !ok {
		return false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return xxhash.Sum64(content) == sum
}

// relocateMap names the generated file and points the source at the original
// relative to the map's directory. The cached map is left untouched.
func relocateMap(m *splice.SourceMap, source, target string) *splice.SourceMap {
	cp := *m
	cp.File = filepath.Base(target)
	src := filepath.Base(source)
	if abs, err := filepath.Abs(source); err == nil {
		if dir, err := filepath.Abs(filepath.Dir(target)); err == nil {
			if rel, err := filepath.Rel(dir, abs); err == nil {
				src = rel
			}
		}
	}
	cp.Sources = []string{filepath.ToSlash(src)}
	return &cp
}

func withMapComment(code, mapName string) string {
	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + "//# sourceMappingURL=" + mapName + "\n"
}

func writeFile(path string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pterrors.NewFileError("mkdir", filepath.Dir(path), err)
	}
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return pterrors.NewFileError("write", path, err)
	}
	return nil
}
