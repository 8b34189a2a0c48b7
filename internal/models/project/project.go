package project

import "time"

// Project is the read-only contract with the project subsystem. The bid
// lifecycle only needs ClientId to authorize accept/reject calls.
type Project struct {
	Id        string    `json:"id"`
	ClientId  string    `json:"clientId"`
	Title     string    `json:"title"`
	Budget    float64   `json:"budget"`
	CreatedAt time.Time `json:"createdAt"`
}
