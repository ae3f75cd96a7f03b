package mock

import (
	"net/url"
	"time"
)

// BookingDelay is how long the booking site takes to render dynamic content.
const BookingDelay = 20 * time.Millisecond

// LockedEmail is rejected by the booking site's login form.
const LockedEmail = "locked@example.com"

// Trip IDs served by BookingSite.
var BookingTrips = []string{"LIS-OPO-0900", "LIS-OPO-1400"}

// BookingSite returns a small travel booking app: login, route search,
// trip selection and confirmation. Dynamic parts render after
// BookingDelay, so callers must wait for them.
func BookingSite() Site {
	site := Site{
		"/login":                  {HTML: loginHTML, Script: loginScript},
		"/help":                   {HTML: `<html><body><h1>Help</h1><p>Contact support.</p></body></html>`},
		"/dashboard":              {HTML: dashboardHTML, Script: dashboardScript},
		"/search":                 {HTML: searchHTML, Script: searchScript},
		"/booking/1001/confirmed": {HTML: confirmedHTML},
	}
	for _, id := range BookingTrips {
		site["/trips/"+id] = Page{HTML: tripHTML(id), Script: tripScript}
	}
	return site
}

const loginHTML = `<html><body>
<nav><a href="/help">Login</a></nav>
<main>
  <h1>Sign in</h1>
  <form>
    <label for="email">Email</label><input id="email" name="email" type="email">
    <label for="password">Password</label><input id="password" name="password" type="password">
    <button type="submit" data-testid="login-button">Login</button>
    <p class="error" role="alert" hidden>Invalid credentials</p>
  </form>
</main>
</body></html>`

func loginScript(d *Document) {
	d.OnClick("[data-testid=login-button]", func(d *Document) {
		email, password := d.Value("#email"), d.Value("#password")
		if email == "" || password == "" || email == LockedEmail {
			d.Show(".error")
			return
		}
		d.Disable("[data-testid=login-button]")
		d.After(BookingDelay, func(d *Document) { d.Navigate("/dashboard") })
	})
}

const dashboardHTML = `<html><body>
<header><span data-testid="user-menu">Account</span></header>
<div class="spinner" role="progressbar">Loading</div>
<form data-testid="search-form" hidden>
  <label for="from">From</label><input id="from" name="from">
  <label for="to">To</label><input id="to" name="to">
  <label for="date">Date</label><input id="date" name="date" type="date">
  <button type="submit" data-testid="search-submit">Search</button>
</form>
</body></html>`

func dashboardScript(d *Document) {
	d.After(BookingDelay, func(d *Document) {
		d.Remove(".spinner")
		d.Show("[data-testid=search-form]")
	})
	d.OnClick("[data-testid=search-submit]", func(d *Document) {
		q := url.Values{}
		q.Set("from", d.Value("#from"))
		q.Set("to", d.Value("#to"))
		if date := d.Value("#date"); date != "" {
			q.Set("date", date)
		}
		d.Navigate("/search?" + q.Encode())
	})
}

const searchHTML = `<html><body>
<h1>Results</h1>
<div class="spinner" role="progressbar">Searching</div>
<ul data-testid="results" hidden>
  <li data-trip="LIS-OPO-0900"><span>09:00 Lisbon to Porto</span>
    <button data-testid="trip-LIS-OPO-0900" data-href="/trips/LIS-OPO-0900">Select</button></li>
  <li data-trip="LIS-OPO-1400"><span>14:00 Lisbon to Porto</span>
    <button data-testid="trip-LIS-OPO-1400" data-href="/trips/LIS-OPO-1400">Select</button></li>
</ul>
</body></html>`

func searchScript(d *Document) {
	d.After(BookingDelay, func(d *Document) {
		d.Remove(".spinner")
		d.Show("[data-testid=results]")
	})
}

func tripHTML(id string) string {
	return `<html><body>
<h1>Trip ` + id + `</h1>
<label for="passenger">Passenger name</label><input id="passenger" name="passenger">
<button data-testid="confirm-booking" disabled>Confirm booking</button>
</body></html>`
}

func tripScript(d *Document) {
	d.After(BookingDelay, func(d *Document) { d.Enable("[data-testid=confirm-booking]") })
	d.OnClick("[data-testid=confirm-booking]", func(d *Document) {
		d.Navigate("/booking/1001/confirmed")
	})
}

const confirmedHTML = `<html><body>
<h1 data-testid="confirmation">Booking confirmed</h1>
</body></html>`
