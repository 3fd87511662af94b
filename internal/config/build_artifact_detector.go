// Build artifact detection from JavaScript project configuration files.
// Compiled output must never be rewritten in place, so directories named by
// package.json, tsconfig.json and bundler configs are added to the exclusions.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BuildArtifactDetector finds build output directories of a JavaScript project
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

var (
	// outDir: 'dist' / outDir: "dist" in vite and rollup configs
	bundlerOutDir = regexp.MustCompile(`outDir\s*:\s*['"]([^'"]+)['"]`)
	// path: path.resolve(__dirname, 'dist') or path: 'dist' in webpack output
	webpackOutPath = regexp.MustCompile(`path\s*:\s*(?:path\.(?:resolve|join)\([^,)]*,\s*)?['"]([^'"]+)['"]`)
	// tsc --outDir lib / babel src --out-dir lib / -d lib
	cliOutDir = regexp.MustCompile(`(?:--outDir|-outDir|--out-dir|-d)[ =]+['"]?([^\s'"&;]+)`)
)

// DetectOutputDirectories scans build configuration files and returns glob
// patterns to exclude (e.g. "**/lib/**")
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var dirs []string
	dirs = append(dirs, bad.fromPackageJSON()...)
	dirs = append(dirs, bad.fromTSConfig()...)
	dirs = append(dirs, bad.fromBundlerConfigs()...)

	patterns := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if p := outputPattern(d); p != "" {
			patterns = append(patterns, p)
		}
	}
	return DeduplicatePatterns(patterns)
}

func (bad *BuildArtifactDetector) fromPackageJSON() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
		Build   struct {
			OutDir string `json:"outDir"`
		} `json:"build"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return nil
	}

	var dirs []string
	for _, script := range pkg.Scripts {
		for _, m := range cliOutDir.FindAllStringSubmatch(script, -1) {
			dirs = append(dirs, m[1])
		}
	}
	if pkg.Build.OutDir != "" {
		dirs = append(dirs, pkg.Build.OutDir)
	}
	return dirs
}

func (bad *BuildArtifactDetector) fromTSConfig() []string {
	for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
		data, err := os.ReadFile(filepath.Join(bad.projectRoot, name))
		if err != nil {
			continue
		}
		var tsconfig struct {
			CompilerOptions struct {
				OutDir string `json:"outDir"`
			} `json:"compilerOptions"`
		}
		if json.Unmarshal(data, &tsconfig) == nil && tsconfig.CompilerOptions.OutDir != "" {
			return []string{tsconfig.CompilerOptions.OutDir}
		}
	}
	return nil
}

func (bad *BuildArtifactDetector) fromBundlerConfigs() []string {
	var dirs []string
	for _, name := range []string{
		"vite.config.js", "vite.config.ts", "vite.config.mjs",
		"rollup.config.js", "rollup.config.mjs",
	} {
		if content, err := os.ReadFile(filepath.Join(bad.projectRoot, name)); err == nil {
			for _, m := range bundlerOutDir.FindAllSubmatch(content, -1) {
				dirs = append(dirs, string(m[1]))
			}
		}
	}
	for _, name := range []string{"webpack.config.js", "webpack.config.mjs"} {
		if content, err := os.ReadFile(filepath.Join(bad.projectRoot, name)); err == nil {
			for _, m := range webpackOutPath.FindAllSubmatch(content, -1) {
				dirs = append(dirs, string(m[1]))
			}
		}
	}
	return dirs
}

// outputPattern turns a configured directory into an exclusion glob. Paths
// that escape the project or name the project itself are ignored.
func outputPattern(dir string) string {
	dir = filepath.ToSlash(filepath.Clean(strings.TrimSpace(dir)))
	dir = strings.TrimPrefix(dir, "./")
	if dir == "" || dir == "." || dir == "/" || strings.HasPrefix(dir, "../") || dir == ".." {
		return ""
	}
	return "**/" + strings.Trim(dir, "/") + "/**"
}

// DeduplicatePatterns removes duplicate patterns, keeping the first occurrence
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}

	return result
}
