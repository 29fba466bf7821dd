package model

// Caller is the authenticated end user on whose behalf a message is sent
type Caller struct {
	Name string `json:"name"`
}
