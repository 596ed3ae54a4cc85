package domain

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is what the persisted key-value store holds for a signed-in user:
// the backend-issued auth token and the serialized user record.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s Session) Valid() bool {
	return s.Token != "" && s.User.ID != ""
}
