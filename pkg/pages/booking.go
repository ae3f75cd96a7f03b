// Package pages holds the page objects of the booking app: reusable flows
// for one business action each. Credentials, routes and trip IDs are fixture
// placeholders, filled in per session.
//
// Fixture records used:
//
//	credentials.email, credentials.password
//	trip.from, trip.to, trip.id
//	passenger.name
package pages

import (
	"context"

	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

// Paths of the booking app.
const (
	LoginPath     = "/login"
	DashboardURL  = "**/dashboard"
	ConfirmedURL  = `re:/booking/\d+/confirmed$`
	SearchPattern = "/search*"
)

// Elements of the booking app.
var (
	EmailField    = flow.ByTestID("email").OrLabel("Email").OrCSS("input[type=email]").Named("email field")
	PasswordField = flow.ByTestID("password").OrLabel("Password").OrCSS("input[type=password]").Named("password field")
	LoginButton   = flow.ByTestID("login-button").OrRole("button", "Login").Named("login button")
	LoginError    = flow.ByRole("alert", "").OrCSS(".error").Named("login error")

	SearchForm   = flow.ByTestID("search-form").Named("search form")
	FromField    = flow.ByLabel("From").OrCSS("#from").Named("origin")
	ToField      = flow.ByLabel("To").OrCSS("#to").Named("destination")
	SearchButton = flow.ByTestID("search-submit").OrRole("button", "Search").Named("search button")
	Spinner      = flow.ByRole("progressbar", "").OrCSS(".spinner").Named("spinner")
	Results      = flow.ByTestID("results").Named("results")

	PassengerField = flow.ByLabel("Passenger name").OrCSS("#passenger").Named("passenger name")
	ConfirmButton  = flow.ByTestID("confirm-booking").OrRole("button", "Confirm booking").Named("confirm button")
	Confirmation   = flow.ByTestID("confirmation").OrText("Booking confirmed").Named("confirmation")
)

// TripButton selects the result row of the trip in ${trip.id}.
var TripButton = flow.ByTestID("trip-${trip.id}").OrCSS(`[data-trip="${trip.id}"] button`).Named("selected trip")

// Login signs in with the session's credentials and waits for the dashboard.
func Login() *flow.Flow {
	return flow.New("login",
		flow.Fill("fill email", EmailField, "${credentials.email}"),
		flow.Fill("fill password", PasswordField, "${credentials.password}"),
		flow.Click("click login", LoginButton),
		flow.AwaitURL("await dashboard", DashboardURL),
	)
}

// SearchRoute searches trips between trip.from and trip.to.
func SearchRoute() *flow.Flow {
	return flow.New("search route",
		flow.AwaitHidden("await dashboard loaded", Spinner),
		flow.Fill("fill origin", FromField, "${trip.from}"),
		flow.Fill("fill destination", ToField, "${trip.to}"),
		flow.Click("click search", SearchButton),
		flow.AwaitURL("await results page", SearchPattern),
	).Then(flow.Visible(Results))
}

// BookTrip books trip.id for passenger.name.
func BookTrip() *flow.Flow {
	return flow.New("book trip",
		flow.Click("select trip", TripButton),
		flow.Fill("fill passenger", PassengerField, "${passenger.name}"),
		flow.Click("confirm booking", ConfirmButton),
	).Then(flow.URLMatches(ConfirmedURL))
}

// Journey returns the full booking journey as a stage pipeline.
func Journey() []executor.Stage {
	return []executor.Stage{
		executor.Goto(LoginPath),
		executor.Run(Login()),
		executor.Run(SearchRoute()),
		executor.Run(BookTrip()),
	}
}

// Book runs the booking journey on s.
func Book(ctx context.Context, s *executor.Session) (*executor.Session, error) {
	return executor.Chain(ctx, s, Journey()...)
}
