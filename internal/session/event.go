package session

// Departure describes what happened when a connection left its session.
type Departure struct {
	Code      string
	Host      ConnID
	WasHost   bool
	Ended     bool     // the host left, so the session no longer exists
	Remaining int      // participants still in the session (0 when Ended)
	Evicted   []ConnID // participants removed because the session ended
}
