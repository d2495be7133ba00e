// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/eritbh/exby/internal/bundler"
	"github.com/eritbh/exby/internal/issue"
)

// classifyBuildError maps build failures to issue catalog IDs and returns a
// styled message for CLI rendering. It preserves actionable error details.
func classifyBuildError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	var artifactErr *bundler.ArtifactError
	var ae *issue.ActionableError

	switch {
	case errors.Is(err, bundler.ErrBundle), errors.As(err, &artifactErr):
		issueID = issue.BundleFailedId
	case errors.As(err, &ae) && ae.Operation == "load manifest" && errors.Is(err, fs.ErrNotExist):
		issueID = issue.ManifestNotFoundId
	case errors.As(err, &ae) && ae.Operation == "prepare destination":
		issueID = issue.DestinationExistsId
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// lookupIssue shields the CLI from ids without a catalog entry.
func lookupIssue(id issue.Id) *issue.Issue {
	if id == 0 {
		return nil
	}
	return issue.Get(id)
}
