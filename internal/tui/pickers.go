package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/conduit-dev/conduit/internal/api"
	"github.com/conduit-dev/conduit/internal/clients"
	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// SelectOrganization prompts for an organization. A single org is chosen
// without prompting.
func SelectOrganization(orgs []api.Organization) (*api.Organization, error) {
	if len(orgs) == 0 {
		return nil, apperrors.NewNotFoundError("no organizations found for this account", nil)
	}
	if len(orgs) == 1 {
		return &orgs[0], nil
	}

	options := make([]huh.Option[string], 0, len(orgs))
	for _, org := range orgs {
		label := org.Name
		if org.Slug != "" {
			label = fmt.Sprintf("%s (%s)", org.Name, org.Slug)
		}
		options = append(options, huh.NewOption(label, org.ID))
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Organization").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return nil, apperrors.NewCancelledError("organization selection cancelled", err)
	}

	for i := range orgs {
		if orgs[i].ID == selected {
			return &orgs[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("selected organization not found", nil)
}

// SelectProject prompts for a project within an organization.
func SelectProject(projects []api.Project) (*api.Project, error) {
	if len(projects) == 0 {
		return nil, apperrors.NewNotFoundError("no projects found in this organization", nil)
	}
	if len(projects) == 1 {
		return &projects[0], nil
	}

	options := make([]huh.Option[string], 0, len(projects))
	for _, project := range projects {
		label := project.Name
		if project.Region != "" {
			label = fmt.Sprintf("%s (%s)", project.Name, project.Region)
		}
		options = append(options, huh.NewOption(label, project.ID))
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Project").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return nil, apperrors.NewCancelledError("project selection cancelled", err)
	}

	for i := range projects {
		if projects[i].ID == selected {
			return &projects[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("selected project not found", nil)
}

// SelectClient prompts for the IDE client to install into.
func SelectClient() (clients.ClientType, error) {
	supported := clients.Supported()
	options := make([]huh.Option[string], 0, len(supported))
	for _, client := range supported {
		options = append(options, huh.NewOption(clients.Describe(client), string(client)))
	}

	var selected string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("IDE client").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return "", apperrors.NewCancelledError("client selection cancelled", err)
	}

	return clients.ClientType(selected), nil
}
