package harvest

import (
	"context"
	"fmt"

	"github.com/use-agent/sosharvest/models"
)

// ReasonAccountRequired is the failure reason when the portal rejects a login
// that skipped the client/payment account selection.
const ReasonAccountRequired = "Login succeeded but the portal requires selecting a client/payment account."

var (
	usernameSelectors = []string{
		`input[name="userId"]`,
		`input[name="userid"]`,
		`input[name="UserID"]`,
		`input[type="text"]`,
	}
	passwordSelectors = []string{
		`input[name="password"]`,
		`input[name="Password"]`,
		`input[type="password"]`,
	}
)

// login drives START through LOGIN_COMPLETE.
func (s *Session) login(ctx context.Context) error {
	// 1. Login page
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	err := s.page.Navigate(navCtx, s.opts.LoginURL)
	cancel()
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", s.opts.LoginURL, err)
	}
	s.setState(StateLoginPageLoaded)
	if err := s.checkpoint(ctx, "A0_LOGOUT_RESET"); err != nil {
		return err
	}
	if err := s.checkpoint(ctx, "A1_LOGIN_PAGE"); err != nil {
		return err
	}

	// 2. Credentials
	passField, err := s.fillCredentials(ctx)
	if err != nil {
		return err
	}
	s.setState(StateCredentialsFilled)
	if err := s.checkpoint(ctx, "A2_LOGIN_FILLED"); err != nil {
		return err
	}

	// 3. Submit
	if err := s.submitLogin(ctx, passField); err != nil {
		return err
	}
	s.setState(StateSubmitted)
	if err := s.checkpoint(ctx, "A3_AFTER_SUBMIT"); err != nil {
		return err
	}

	// 4. Client account
	outcome, err := s.resolveAccount(ctx, s.opts.AccountSelector)
	if err != nil {
		return fmt.Errorf("resolve client account: %w", err)
	}
	if outcome == AccountSelected {
		s.setState(StateAccountSelected)
		if err := s.continueAfterSelection(ctx); err != nil {
			return err
		}
		if err := s.checkpoint(ctx, "A5_LOGIN1_AFTER_SELECT"); err != nil {
			return err
		}
	} else {
		if outcome == AccountUnresolved {
			s.setState(StateAccountSelectionFailed)
			s.log.Warn("client account prompt could not be satisfied", "account", s.opts.AccountSelector)
		} else {
			s.setState(StateAccountPromptAbsent)
		}

		// 5. Rejection check
		rejected, err := s.accountRejected(ctx)
		if err != nil {
			return err
		}
		if rejected {
			return s.failWith(ctx, "FAIL_LOGIN1_PAYMENT_MISSING", models.ErrCodeAccountSelection, ReasonAccountRequired)
		}
		if err := s.checkpoint(ctx, "A4_LOGIN1_NO_SELECT"); err != nil {
			return err
		}
	}

	s.setState(StateLoginComplete)
	s.log.Info("login complete", "account_step", outcome.String())
	return nil
}

// fillCredentials fills username and password and returns the password field.
// Missing credentials are sent as empty strings; the portal's own rejection
// is the observable failure.
func (s *Session) fillCredentials(ctx context.Context) (Element, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	defer cancel()

	userField, found, err := findFirst(ctx, s.page, usernameSelectors...)
	if err != nil {
		return nil, fmt.Errorf("locate username field: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("username field not found")
	}
	passField, found, err := findFirst(ctx, s.page, passwordSelectors...)
	if err != nil {
		return nil, fmt.Errorf("locate password field: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("password field not found")
	}

	if err := userField.Fill(ctx, s.opts.Username); err != nil {
		return nil, fmt.Errorf("fill username: %w", err)
	}
	if err := passField.Fill(ctx, s.opts.Password); err != nil {
		return nil, fmt.Errorf("fill password: %w", err)
	}
	return passField, nil
}

func (s *Session) submitLogin(ctx context.Context, passField Element) error {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	submit, found, err := submitControl(lookupCtx, s.page, "Submit", "Login")
	cancel()
	if err != nil {
		return fmt.Errorf("locate login submit: %w", err)
	}

	if found {
		err = s.clickAndAwaitNavigation(ctx, submit.Click)
	} else {
		s.log.Debug("no login submit control, pressing Enter in password field")
		err = s.clickAndAwaitNavigation(ctx, func(ctx context.Context) error {
			return passField.Press(ctx, KeyEnter)
		})
	}
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	return nil
}

func (s *Session) continueAfterSelection(ctx context.Context) error {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	cont, found, err := submitControl(lookupCtx, s.page, "Continue", "Submit")
	cancel()
	if err != nil {
		return fmt.Errorf("locate continue control: %w", err)
	}
	if !found {
		return nil
	}
	if err := s.clickAndAwaitNavigation(ctx, cont.Click); err != nil {
		return fmt.Errorf("continue after account selection: %w", err)
	}
	return nil
}

func (s *Session) accountRejected(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SelectorTimeout)
	defer cancel()
	body, err := s.page.Text(ctx, "body")
	if err != nil {
		return false, fmt.Errorf("read page text: %w", err)
	}
	return accountRejectionRe.MatchString(body), nil
}
