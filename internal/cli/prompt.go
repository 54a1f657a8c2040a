package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/scatter/internal/errors"
)

// promptPassword asks for the password used by --ask-pass. The value is
// masked and never echoed back.
func promptPassword() (string, error) {
	var password string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH password").
				Description("Tried on every host after key authentication").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("password is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.New(errors.ErrCancelled, "Password prompt cancelled", "")
		}
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't prompt for a password",
			"--ask-pass needs a terminal. Use --password-file in scripts.")
	}
	return password, nil
}
