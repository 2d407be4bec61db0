package harvesttest

import (
	"fmt"
	"strings"
)

// LoginURL is the route PortalScreens registers for the login screen.
const LoginURL = "https://portal.test/acct/acct-login.asp"

// Portal screen names.
const (
	ScreenLogin    = "login"
	ScreenAccount  = "account"
	ScreenRejected = "rejected"
	ScreenHome     = "home"
	ScreenCorp     = "corp"
	ScreenSearch   = "search"
)

// LoginScreen is a login form that lands on next when submitted.
func LoginScreen(next string) string {
	return `<html><head><title>SOSDirect Login</title></head><body>
<form data-goto="` + next + `">
  <input type="text" name="userId">
  <input type="password" name="password">
  <input type="submit" value="Submit">
</form>
</body></html>`
}

// AccountScreen asks for a client account from a dropdown.
func AccountScreen(next string, accounts ...string) string {
	var opts strings.Builder
	for _, a := range accounts {
		fmt.Fprintf(&opts, `<option value="%s">%s</option>`, a, a)
	}
	return `<html><body>
<p>Please select a client account for this session.</p>
<form data-goto="` + next + `">
  <select name="clientAccount">` + opts.String() + `</select>
  <input type="submit" value="Continue">
</form>
</body></html>`
}

// RejectedScreen is what the portal shows after a login without account.
func RejectedScreen() string {
	return `<html><body><p>Payment information is missing. You must select a client account.</p></body></html>`
}

// HomeScreen links to the Business Organizations area.
func HomeScreen(next string) string {
	return `<html><body><a href="/corp" data-goto="` + next + `">Business Organizations</a></body></html>`
}

// CorpScreen links to the registered agent report, or to nothing when
// next is "".
func CorpScreen(next string) string {
	if next == "" {
		return `<html><body><a href="/other">Certificates of Fact</a></body></html>`
	}
	return `<html><body>
<a href="/corp/ra" data-goto="` + next + `">Registered Agent activity past 60 days</a>
</body></html>`
}

// SearchScreen is the report search form.
func SearchScreen(next string) string {
	return `<html><body>
<form data-goto="` + next + `">
  <input type="text" name="filingDate">
  <input type="text" name="agentName">
  <input type="submit" value="Search">
</form>
</body></html>`
}

// ResultsScreen renders a results table with a header row. next, when not
// empty, adds a "Next" link to that screen.
func ResultsScreen(next string, rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tr><th>Filing</th><th>Name</th></tr>`)
	for _, r := range rows {
		b.WriteString("<tr>")
		for _, c := range r {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString(`</table>`)
	if next != "" {
		fmt.Fprintf(&b, `<a href="#" data-goto="%s">Next &gt;</a>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// ResultsPageName names the i-th (1-based) results screen.
func ResultsPageName(i int) string { return fmt.Sprintf("results-%d", i) }

// Portal builds the screens of a portal whose login lands on the home page
// and whose search yields pages of results. Each page holds the rows given
// for it.
func Portal(pages ...[][]string) map[string]string {
	screens := map[string]string{
		ScreenLogin:  LoginScreen(ScreenHome),
		ScreenHome:   HomeScreen(ScreenCorp),
		ScreenCorp:   CorpScreen(ScreenSearch),
		ScreenSearch: SearchScreen(ResultsPageName(1)),
	}
	for i, rows := range pages {
		next := ""
		if i+1 < len(pages) {
			next = ResultsPageName(i + 2)
		}
		screens[ResultsPageName(i+1)] = ResultsScreen(next, rows...)
	}
	return screens
}

// NewPortalPage returns a Page over screens with the login screen routed
// at LoginURL.
func NewPortalPage(screens map[string]string) *Page {
	return NewPage(screens).Route(LoginURL, ScreenLogin)
}
