package users

import "encoding/json"

// Decode parses a stored JSON document.
func Decode(raw []byte) (User, error) {
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, err
	}
	if user.Inventory == nil {
		user.Inventory = Inventory{}
	}
	return user, nil
}

// Encode renders u as a stored JSON document.
func Encode(u User) ([]byte, error) {
	if u.Inventory == nil {
		u.Inventory = Inventory{}
	}
	return json.Marshal(u)
}
