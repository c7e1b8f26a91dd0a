package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

// Email tests that every GitHub email address matches the configured
// rule_email_regex. The rule is disabled entirely when no regex is
// configured.
type Email struct {
	user *models.GithubUser
	snap *settings.Snapshot

	regex *regexp.Regexp
}

func (r *Email) Name() string { return "email" }

func (r *Email) Result() bool {
	re, err := r.compiled()
	if err != nil {
		return false
	}
	for _, address := range r.addresses() {
		if !re.MatchString(address) {
			return false
		}
	}
	return true
}

func (r *Email) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	re, err := r.compiled()
	if err != nil {
		return fmt.Sprintf("Invalid email rule pattern: %s", r.snap.RuleEmailRegex)
	}
	var bad []string
	for _, address := range r.addresses() {
		if !re.MatchString(address) {
			bad = append(bad, address)
		}
	}
	verb := "Emails do"
	if len(bad) == 1 {
		verb = "Email does"
	}
	return fmt.Sprintf("%s not meet criteria: %s", verb, strings.Join(bad, ", "))
}

func (r *Email) Notify() bool { return true }

func (r *Email) RequiredForExternal() bool { return false }

func (r *Email) addresses() []string {
	var addresses []string
	for _, email := range r.user.Emails {
		addresses = append(addresses, strings.ToLower(email.Address))
	}
	return addresses
}

func (r *Email) compiled() (*regexp.Regexp, error) {
	if r.regex != nil {
		return r.regex, nil
	}
	re, err := regexp.Compile(r.snap.RuleEmailRegex)
	if err != nil {
		return nil, err
	}
	r.regex = re
	return re, nil
}
