package domain

// Notification is the message produced by activating a version. Delivery is
// the transport's business.
type Notification struct {
	VersionID       int64  `json:"versionId"`
	FirstActivation bool   `json:"firstActivation"`
	Subject         string `json:"subject"`
	HTMLBody        string `json:"htmlBody"`
}
