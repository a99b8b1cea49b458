// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"slices"

	"freezecheck-cli/pkg/platform"
)

const (
	// ShapeExeDir means the build output is a plain directory holding the executable.
	ShapeExeDir ArtifactShape = "exe-dir"
	// ShapeBundle means some distribution formats wrap the output in an app bundle
	// (<name>.app/Contents/MacOS) that must be searched as well.
	ShapeBundle ArtifactShape = "bundle"

	// LogCaptureFiles means frozen samples write <logbase>.log / <logbase>.err files.
	LogCaptureFiles LogCapture = "files"
	// LogCaptureFilesAndOut additionally collects <logbase>.out, used by windowed
	// executables that have no console attached.
	LogCaptureFilesAndOut LogCapture = "files+out"
)

type (
	// ArtifactShape describes how build artifacts are laid out on disk.
	ArtifactShape string

	// LogCapture describes which log files the run driver leaves next to each sample.
	LogCapture string

	// Adapter is the behavior record for one platform family.
	Adapter struct {
		// Family is the family this record describes.
		Family platform.Family
		// Windowed marks the family whose frozen executables need the system
		// runtime libraries bundled (--include-msvcr).
		Windowed bool
		// Formats lists the distribution-format tags accepted for a secondary build step.
		Formats []string
		// BundleFormats lists the subset of Formats that produce an app bundle.
		BundleFormats []string
		// Shape is the artifact layout for the family.
		Shape ArtifactShape
		// ContainerCheck enables the containerized cross-check of console samples.
		ContainerCheck bool
		// IsolationSupported is false where virtual environments cannot be activated.
		IsolationSupported bool
		// ScriptsDir is the environment subdirectory holding the interpreter.
		ScriptsDir string
		// ExeSuffix is appended to executable names.
		ExeSuffix string
		// LogCapture selects the log files echoed per process record.
		LogCapture LogCapture
	}
)

var adapters = map[platform.Family]Adapter{
	platform.FamilyLinux: {
		Family:             platform.FamilyLinux,
		Formats:            []string{"appimage", "rpm"},
		Shape:              ShapeExeDir,
		ContainerCheck:     true,
		IsolationSupported: true,
		ScriptsDir:         "bin",
		LogCapture:         LogCaptureFiles,
	},
	platform.FamilyMacOS: {
		Family:             platform.FamilyMacOS,
		Formats:            []string{"mac", "dmg"},
		BundleFormats:      []string{"mac", "dmg"},
		Shape:              ShapeBundle,
		IsolationSupported: true,
		ScriptsDir:         "bin",
		LogCapture:         LogCaptureFiles,
	},
	platform.FamilyMinGW: {
		Family:     platform.FamilyMinGW,
		Formats:    []string{"msi"},
		Shape:      ShapeExeDir,
		ScriptsDir: "bin",
		ExeSuffix:  ".exe",
		LogCapture: LogCaptureFilesAndOut,
	},
	platform.FamilyWindows: {
		Family:             platform.FamilyWindows,
		Windowed:           true,
		Formats:            []string{"msi"},
		Shape:              ShapeExeDir,
		IsolationSupported: true,
		ScriptsDir:         "Scripts",
		ExeSuffix:          ".exe",
		LogCapture:         LogCaptureFilesAndOut,
	},
}

// AdapterFor returns the behavior record for a family.
// Unknown families get the Linux record.
func AdapterFor(f platform.Family) Adapter {
	if a, ok := adapters[f]; ok {
		return a
	}
	return adapters[platform.FamilyLinux]
}

// AdapterForTag is shorthand for AdapterFor(platform.FamilyFromTag(tag)).
func AdapterForTag(tag string) Adapter {
	return AdapterFor(platform.FamilyFromTag(tag))
}

// SupportsFormat reports whether format is a recognized distribution tag for the family.
func (a Adapter) SupportsFormat(format string) bool {
	return format != "" && slices.Contains(a.Formats, format)
}

// ProducesBundle reports whether building format yields an app bundle on this family.
func (a Adapter) ProducesBundle(format string) bool {
	return a.Shape == ShapeBundle && slices.Contains(a.BundleFormats, format)
}

// LogSuffixes returns the log-file suffixes appended to a record's log base path.
func (a Adapter) LogSuffixes() []string {
	if a.LogCapture == LogCaptureFilesAndOut {
		return []string{".log", ".err", ".out"}
	}
	return []string{".log", ".err"}
}
