package models

// Theme names.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences holds display and notification toggles.
type Preferences struct {
	ShareCardShowMoney   bool   `json:"shareCardShowMoney"`
	ShareCardShowTime    bool   `json:"shareCardShowTime"`
	ShareCardShowStreak  bool   `json:"shareCardShowStreak"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	ReminderBackup       bool   `json:"reminderBackup"`
	Theme                string `json:"theme"`
}

// DefaultPreferences is the baseline used before the user saves anything.
func DefaultPreferences() Preferences {
	return Preferences{
		ShareCardShowMoney:  true,
		ShareCardShowTime:   true,
		ShareCardShowStreak: true,
		ReminderBackup:      true,
		Theme:               ThemeLight,
	}
}

// Validate accepts the known themes only.
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeLight, ThemeDark:
		return nil
	default:
		return invalidf("unknown theme %q", p.Theme)
	}
}
