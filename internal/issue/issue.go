// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	SampleNotFoundId Id = iota + 1
	SampleUnsupportedId
	SampleMatrixInvalidId
	InterpreterQueryFailedId
	EnvironmentNotFoundId
	EnvironmentCreateFailedId
	DependencyInstallFailedId
	BuildFailedId
	NoArtifactsId
	ProtocolViolationId
	ContainerEngineNotFoundId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id    Id          // lookup key
	mdMsg MarkdownMsg // rendered body
	links []HttpLink  // tool documentation
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Markdown returns the issue body followed by its links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.links) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.links {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue for a terminal using the glamour style at stylePath
// ("dark", "light", "notty", or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	sampleNotFoundIssue = &Issue{
		id: SampleNotFoundId,
		mdMsg: `
# Sample not found

The sample directory does not exist under the samples root.

## Things you can try
- List the available samples:
~~~
$ ls samples/
~~~
- Pass the directory name, not a path: ` + "`freezecheck run simple`" + `
- Point ` + "`paths.samples_dir`" + ` in your config at the right checkout`,
	}

	sampleUnsupportedIssue = &Issue{
		id: SampleUnsupportedId,
		mdMsg: `
# Sample skipped on this platform

The sample matrix restricts this sample to other platforms or interpreter
versions. Nothing was built and the run counts as a success.

## Things you can try
- Check the ` + "`platform`" + ` and ` + "`python_version`" + ` entries for the sample in ` + "`ci/build-test.json`",
	}

	sampleMatrixInvalidIssue = &Issue{
		id: SampleMatrixInvalidId,
		mdMsg: `
# Sample matrix is invalid

` + "`ci/build-test.json`" + ` does not match the expected schema.

## Expected shape
~~~json
{
  "tkinter": {"platform": "!mingw", "test_app": ["test_tkinter"]},
  "pandas": {"requirements": ["pandas"], "python_version": ">=3.10"}
}
~~~`,
	}

	interpreterQueryFailedIssue = &Issue{
		id: InterpreterQueryFailedId,
		mdMsg: `
# Interpreter query failed

The harness could not ask the interpreter for its platform tag and version.

## Things you can try
- Make sure the interpreter starts: ` + "`python -c 'import sys; print(sys.version)'`" + `
- Install the freezer into that interpreter, or use ` + "`--deps=e`" + ` to install it from source`,
	}

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Named environment not found

The conda environment passed with ` + "`--env`" + ` does not exist.

## Things you can try
~~~
$ conda env list
$ conda create -n <name> python=3.12
~~~`,
		links: []HttpLink{"https://docs.conda.io/projects/conda/en/latest/user-guide/tasks/manage-environments.html"},
	}

	environmentCreateFailedIssue = &Issue{
		id: EnvironmentCreateFailedId,
		mdMsg: `
# Could not create the virtual environment

## Things you can try
- Install ` + "`uv`" + `, which the harness prefers for creating environments
- Check that the system interpreter ships the ` + "`venv`" + ` module
- Remove a half-created environment under ` + "`environment.root`" + ` and retry`,
		links: []HttpLink{"https://docs.astral.sh/uv/"},
	}

	dependencyInstallFailedIssue = &Issue{
		id: DependencyInstallFailedId,
		mdMsg: `
# Dependency installation failed

The installer script exited with an error. Its output is in the report above.

## Things you can try
- Retry with ` + "`--verbose`" + ` to see the installer's commands
- Use ` + "`--deps=b`" + ` to install basic requirements only
- Skip installation for an already prepared environment with ` + "`--no-deps`",
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Freezing the sample failed

The build step exited with an error. Its output is in the report above.

## Things you can try
- Add options through ` + "`BUILD_OPTS`" + `, e.g. ` + "`BUILD_OPTS=--excludes=tkinter`" + `
- Use ` + "`--debug`" + ` to enable the freezer's diagnostics`,
	}

	noArtifactsIssue = &Issue{
		id: NoArtifactsId,
		mdMsg: `
# No build output found

The build finished but no artifact directory was found where the platform
expects it (` + "`build/exe.<platform>-<version>`" + ` or an app bundle).`,
	}

	protocolViolationIssue = &Issue{
		id: ProtocolViolationId,
		mdMsg: `
# The run driver broke the protocol

Every stdout line of the run driver must be a process record or the final
status record:
~~~
<pid> <exit-code> <logbase> <apptype> <name>
status <exit-code>
~~~
Stray prints in the run driver are the usual cause.`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine

The Linux cross-check reruns console samples in a container. Neither Podman
nor Docker was found, so the cross-check was skipped. Results are unaffected.`,
		links: []HttpLink{"https://podman.io/docs/installation", "https://docs.docker.com/engine/install/"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Show the effective configuration: ` + "`freezecheck config show`" + `
- Write a fresh default file: ` + "`freezecheck config init`" + `
- Check CUE syntax: ` + "`cue vet config.cue`",
		links: []HttpLink{"https://cuelang.org/docs/"},
	}

	issues = map[Id]*Issue{
		sampleNotFoundIssue.Id():          sampleNotFoundIssue,
		sampleUnsupportedIssue.Id():       sampleUnsupportedIssue,
		sampleMatrixInvalidIssue.Id():     sampleMatrixInvalidIssue,
		interpreterQueryFailedIssue.Id():  interpreterQueryFailedIssue,
		environmentNotFoundIssue.Id():     environmentNotFoundIssue,
		environmentCreateFailedIssue.Id(): environmentCreateFailedIssue,
		dependencyInstallFailedIssue.Id(): dependencyInstallFailedIssue,
		buildFailedIssue.Id():             buildFailedIssue,
		noArtifactsIssue.Id():             noArtifactsIssue,
		protocolViolationIssue.Id():       protocolViolationIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

// Values returns the catalog sorted by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, is)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
