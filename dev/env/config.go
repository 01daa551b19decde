package devenv

// LivePortalConfig is read from dev/.state/live_portal.json5 by the tests
// that drive the real portal. They are skipped when it is absent.
type LivePortalConfig struct {
	State    string `json:"state"`
	District string `json:"district"`
	Complex  string `json:"complex"`
	// Date is YYYY-MM-DD, defaults to today.
	Date      string `json:"date"`
	RemoteUrl string `json:"remote_url"`
}
