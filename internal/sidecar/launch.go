package sidecar

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"fictionbridge/internal/config"
	"fictionbridge/internal/services"
)

// LogLevelEnv carries the configured worker log level.
const LogLevelEnv = "FT_LOG_LEVEL"

const packagedBinary = "fiction-translator-sidecar"

// LaunchSpec is a ready-to-run worker command line.
type LaunchSpec struct {
	Executable string
	Args       []string
	Dir        string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
}

// String renders the command line for logs and status output.
func (s LaunchSpec) String() string {
	parts := append([]string{s.Executable}, s.Args...)
	return strings.Join(parts, " ")
}

// DevLaunch runs the worker module with a local interpreter from projectDir.
func DevLaunch(python, module, projectDir string) LaunchSpec {
	return LaunchSpec{
		Executable: python,
		Args:       []string{"-m", module},
		Dir:        projectDir,
	}
}

// PackagedLaunch runs the bundled worker binary from resourceDir/binaries.
func PackagedLaunch(resourceDir string) LaunchSpec {
	return LaunchSpec{
		Executable: filepath.Join(resourceDir, "binaries", packagedBinaryName(runtime.GOOS)),
		Dir:        resourceDir,
	}
}

func packagedBinaryName(goos string) string {
	if goos == "windows" {
		return packagedBinary + ".exe"
	}
	return packagedBinary
}

// ResolveLaunch selects the launch strategy configured in cfg.Sidecar and
// attaches the worker environment.
func ResolveLaunch(cfg *config.Config) (LaunchSpec, error) {
	if cfg == nil {
		return LaunchSpec{}, services.Wrap(services.ErrConfiguration, "sidecar", "resolve launch", "config is required", nil)
	}
	sc := cfg.Sidecar

	var spec LaunchSpec
	switch sc.Mode {
	case config.ModeDev:
		spec = DevLaunch(sc.Python, sc.Module, sc.ProjectDir)
	case config.ModePackaged:
		spec = PackagedLaunch(sc.ResourceDir)
	case config.ModeCustom:
		spec = LaunchSpec{
			Executable: sc.Executable,
			Args:       append([]string(nil), sc.Args...),
			Dir:        sc.Workdir,
		}
	default:
		return LaunchSpec{}, services.Wrap(services.ErrConfiguration, "sidecar", "resolve launch",
			fmt.Sprintf("unsupported mode %q", sc.Mode), nil)
	}

	spec.Env = append(spec.Env, LogLevelEnv+"="+sc.LogLevel)
	keys := make([]string, 0, len(sc.Env))
	for key := range sc.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		spec.Env = append(spec.Env, key+"="+sc.Env[key])
	}
	return spec, nil
}
