package branches

// Branch is an office users are attached to.
type Branch struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Option is the id/name pair used by selectors.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
