// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies one well-known failure with a rendered explanation.
type Id int

const (
	ManifestNotFoundId Id = iota + 1
	DestinationExistsId
	BundleFailedId
)

// MarkdownMsg is the raw markdown body of an issue.
type MarkdownMsg string

// Issue is a catalog entry: a stable id plus the markdown shown to the user
// when the corresponding failure occurs.
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

// Render produces the terminal-formatted explanation.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No manifest found

The source directory has no ` + "`manifest.json`" + `, so there is nothing to
build: the manifest is where the background and content-script entry points
are declared.

## Things you can try
- Point exby at the directory that contains ` + "`manifest.json`" + `:
~~~
$ exby build path/to/extension-src dist
~~~
- Or scaffold a fresh source directory:
~~~
$ exby init my-extension
~~~`,
	}

	destinationExistsIssue = &Issue{
		id: DestinationExistsId,
		mdMsg: `
# Destination already exists

exby refuses to write into an existing path so a build can never clobber a
previous one. Nothing was written.

## Things you can try
- Remove the old output first:
~~~
$ rm -r dist && exby build src dist
~~~
- Or build into a fresh destination.`,
	}

	bundleFailedIssue = &Issue{
		id: BundleFailedId,
		mdMsg: `
# Bundling failed

The bundler could not compile the entry points the manifest references.
The messages above name the offending files.

## Things you can try
- Check that every script listed in ` + "`manifest.json`" + ` exists.
- Check the listed files for syntax errors.`,
	}

	catalog = []*Issue{
		manifestNotFoundIssue,
		destinationExistsIssue,
		bundleFailedIssue,
	}
)

// Get returns the catalog entry for id, or nil when the failure has no
// rendered explanation.
func Get(id Id) *Issue {
	idx := slices.IndexFunc(catalog, func(i *Issue) bool { return i.id == id })
	if idx < 0 {
		return nil
	}
	return catalog[idx]
}
