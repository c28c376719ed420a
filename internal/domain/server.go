package domain

// Server is a paired agent server the client knows about.
type Server struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// PairingResponse is returned by the server's pair endpoint.
type PairingResponse struct {
	Paired bool   `json:"paired"`
	Token  string `json:"token"`
}
