// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	GlobalConfigNotFoundId Id = iota + 1
	GlobalConfigInvalidId
	ComponentConfigInvalidId
	SettingsInvalidId
	DiscoveryFailedId
	ComponentFailedId
	ManifestWriteFailedId
	PartitionFailedId
	InvalidPortId
)

type MarkdownMsg string

type Issue struct {
	id    Id
	mdMsg MarkdownMsg
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Title is the text of the first level-one heading.
func (i *Issue) Title() string {
	for line := range strings.Lines(string(i.mdMsg)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimRight(title, "!")
		}
	}
	return ""
}

// Render formats the help page for the terminal. stylePath is a glamour
// standard style name ("dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	globalConfigNotFoundIssue = &Issue{
		id: GlobalConfigNotFoundId,
		mdMsg: `
# No maestro configuration found!

maestro needs the list of entities to build. It looks for, in order:
maestro.cue, maestro.json, maestro.toml, maestro.yaml in the current directory.

## Things you can try:
- Create a maestro.cue:
~~~cue
entities: [
  {name: "billing"},
  {name: "customers", domain: "crm"},
]
~~~
- Point to another file:
~~~
$ maestro build --global-config path/to/maestro.cue
~~~
- Or target a single entity without any global file:
~~~
$ maestro build --entity billing
~~~`,
	}

	globalConfigInvalidIssue = &Issue{
		id: GlobalConfigInvalidId,
		mdMsg: `
# Invalid maestro configuration!

The global configuration must define a non-empty **entities** list, and every
entity needs a unique, non-empty **name**.

## Things you can try:
- Check the field path in the error above
- Remove duplicated entity names`,
	}

	componentConfigInvalidIssue = &Issue{
		id: ComponentConfigInvalidId,
		mdMsg: `
# Invalid component configuration!

Every component directory holds a maestro.app.cue that must set all of:

~~~cue
microAppName: "invoice-list"
entity:       "billing"
uiType:       "master"      // master, detail, new, edit, ...
mfName:       "invoiceList"
processor:    "default"
requiredAcls: ["invoice.read"]
~~~`,
	}

	settingsInvalidIssue = &Issue{
		id: SettingsInvalidId,
		mdMsg: `
# Invalid maestro settings!

A flag, a MAESTRO_* environment variable or .maestro/config.cue holds an
unsupported value.

## Things you can try:
- Print the resolved settings:
~~~
$ maestro config show
~~~
- failure_policy accepts stop-scheduling, cancel-in-flight, continue
- runtime accepts native, virtual`,
	}

	discoveryFailedIssue = &Issue{
		id: DiscoveryFailedId,
		mdMsg: `
# Could not list the components of an entity!

maestro reads <root>/<entity>/ to find components.

## Things you can try:
- Check that --root points at the components root (default: apps)
- Check that a directory exists for every entity in maestro.cue`,
	}

	componentFailedIssue = &Issue{
		id: ComponentFailedId,
		mdMsg: `
# A component operation failed!

One component returned a non-zero exit status. Remaining components were not
started, so the output set may be incomplete.

## Things you can try:
- Re-run only that component with --component <name> --verbose
- Use --failure-policy continue to see every failing component at once`,
	}

	manifestWriteFailedIssue = &Issue{
		id: ManifestWriteFailedId,
		mdMsg: `
# Could not write mf-maestro.json!

## Things you can try:
- Check write permissions on the target directory (--target-dir)
- Make sure no two entities share the same domain/entity output directory`,
	}

	partitionFailedIssue = &Issue{
		id: PartitionFailedId,
		mdMsg: `
# Partition materialization failed!

Partitions copied before the failure were left in place.

## Things you can try:
- Check free disk space and permissions on --destination
- Remove stale partition directories and run again`,
	}

	invalidPortIssue = &Issue{
		id: InvalidPortId,
		mdMsg: `
# Invalid port!

--port must be an integer between 1 and 65535.`,
	}

	issues = map[Id]*Issue{
		globalConfigNotFoundIssue.Id():   globalConfigNotFoundIssue,
		globalConfigInvalidIssue.Id():    globalConfigInvalidIssue,
		componentConfigInvalidIssue.Id(): componentConfigInvalidIssue,
		settingsInvalidIssue.Id():        settingsInvalidIssue,
		discoveryFailedIssue.Id():        discoveryFailedIssue,
		componentFailedIssue.Id():        componentFailedIssue,
		manifestWriteFailedIssue.Id():    manifestWriteFailedIssue,
		partitionFailedIssue.Id():        partitionFailedIssue,
		invalidPortIssue.Id():            invalidPortIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
