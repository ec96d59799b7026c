package models

// User is the persisted account record. Password and SessionToken hold
// bcrypt hashes, never plaintext.
type User struct {
	Username     string `json:"username" db:"username"`
	Password     string `json:"-" db:"password"`
	Rank         int    `json:"rank" db:"rank"`
	SessionToken string `json:"-" db:"token_hash"`
}
