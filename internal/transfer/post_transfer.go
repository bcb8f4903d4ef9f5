package transfer

type PostCreation struct {
	Content      string
	Title        string
	ScheduledFor string
	Platforms    string // JSON array of platform names
}

type PostUpdate struct {
	Content      string
	Title        string
	ScheduledFor string
}
