package roomhandler

// RoomsResponse lists known room names.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// ClientsResponse lists the occupants of one room.
type ClientsResponse struct {
	Room    string   `json:"room"`
	Clients []string `json:"clients"`
}

// ErrorResponse is returned for failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
