// Package prepare patches the project's dependencies before the packager is spawned.
package prepare

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

const (
	opnPackage      = "opn"
	opnMainFile     = "index.js"
	injectorFile    = "opn-main.js"
	manifestFile    = "package.json"
	nodeModulesDir  = "node_modules"
	reactNativePkg  = "react-native"
	manifestMainKey = "main"
)

//go:embed assets/opn-main.js
var injector []byte

// Noop prepares nothing. It is used when patching is disabled.
type Noop struct{}

func (Noop) Apply() error { return nil }

// OpnPatcher replaces the entry point of the opn package so the packager cannot open a browser.
type OpnPatcher struct {
	projectPath string
	logger      *logger.Logger
}

// NewOpnPatcher creates a patcher for the project at projectPath.
func NewOpnPatcher(projectPath string, log *logger.Logger) *OpnPatcher {
	if log == nil {
		log = logger.Default()
	}
	return &OpnPatcher{projectPath: projectPath, logger: log.WithComponent("prepare")}
}

// Candidates returns where opn may be installed: flat under the project first,
// then nested under react-native.
func (p *OpnPatcher) Candidates() []string {
	return []string{
		filepath.Join(p.projectPath, nodeModulesDir, opnPackage, opnMainFile),
		filepath.Join(p.projectPath, nodeModulesDir, reactNativePkg, nodeModulesDir, opnPackage, opnMainFile),
	}
}

// Apply installs the replacement entry point unless the manifest already points at it.
// Failures are reported as *errors.PreparationError.
func (p *OpnPatcher) Apply() error {
	candidates := p.Candidates()
	index, err := findFirst(candidates)
	if err != nil {
		return errors.NewPreparationError(opnPackage, candidates, err)
	}
	dir := filepath.Dir(index)
	manifestPath := filepath.Join(dir, manifestFile)

	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.NewPreparationError(opnPackage, candidates, err)
	}
	if !gjson.ValidBytes(manifest) {
		return errors.NewPreparationError(opnPackage, candidates, fmt.Errorf("%s is not valid JSON", manifestPath))
	}
	if gjson.GetBytes(manifest, manifestMainKey).String() == injectorFile {
		p.logger.Debug("opn already patched", zap.String("path", dir))
		return nil
	}

	if err := os.WriteFile(filepath.Join(dir, injectorFile), injector, 0o644); err != nil {
		return errors.NewPreparationError(opnPackage, candidates, err)
	}
	patched, err := sjson.SetBytes(manifest, manifestMainKey, injectorFile)
	if err != nil {
		return errors.NewPreparationError(opnPackage, candidates, err)
	}
	if err := writeKeepingMode(manifestPath, patched); err != nil {
		return errors.NewPreparationError(opnPackage, candidates, err)
	}

	p.logger.Info("patched opn entry point", zap.String("path", dir))
	return nil
}

func findFirst(paths []string) (string, error) {
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("opn package location not found: %w", os.ErrNotExist)
}

func writeKeepingMode(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
