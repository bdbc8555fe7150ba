package models

// Actor is whoever issued the current request. The zero value is anonymous.
type Actor struct {
	UserID uint
	Admin  bool
}

// Anonymous is the actor of a request without a logged-in user.
var Anonymous = Actor{}

func ActorFor(u *User) Actor {
	if u == nil {
		return Anonymous
	}
	return Actor{UserID: u.ID, Admin: u.IsAdmin()}
}

func (a Actor) Authenticated() bool {
	return a.UserID != 0
}
