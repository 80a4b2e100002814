package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

func promptCredentials(email, password *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Value(email).
			Validate(utils.ValidateEmail),
		huh.NewInput().
			Title("Mot de passe").
			EchoMode(huh.EchoModePassword).
			Value(password),
	))
	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func promptRegistration(reg *auth.Registration) error {
	role := string(reg.Role)
	if role == "" {
		role = string(auth.RoleTenant)
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Nom d'utilisateur").Value(&reg.Username).Validate(utils.ValidateUsername),
			huh.NewInput().Title("Email").Value(&reg.Email).Validate(utils.ValidateEmail),
			huh.NewInput().Title("Mot de passe").EchoMode(huh.EchoModePassword).Value(&reg.Password).Validate(utils.ValidatePassword),
		),
		huh.NewGroup(
			huh.NewInput().Title("Téléphone").Placeholder("optionnel").Value(&reg.Phone),
			huh.NewInput().Title("CNI").Placeholder("optionnel").Value(&reg.NationalID),
			huh.NewSelect[string]().
				Title("Rôle").
				Options(
					huh.NewOption("Locataire", string(auth.RoleTenant)),
					huh.NewOption("Propriétaire", string(auth.RoleOwner)),
				).
				Value(&role),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	reg.Role = auth.Role(role)
	return nil
}

func promptConfirm(title string) (bool, error) {
	ok := false
	if err := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(title).Value(&ok))).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}
