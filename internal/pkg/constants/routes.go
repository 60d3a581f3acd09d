package constants

// Route constants shared by the router, the OAuth setup and main
const (
	PublicRoute = "/"
	APIRoute    = "/api"
	APIv1Route  = "/api/v1"
	DocsRoute   = "/docs/api/"

	// Redirect target of the Google calendar consent flow
	CalendarCallbackRoute = APIv1Route + "/calendar/callback"
	// Where the calendar callback sends the browser back to
	SettingsRoute = "/settings"

	GoogleSignInCallbackRoute = "/auth/google/callback"
	LogoutRoute               = "/logout"
)
