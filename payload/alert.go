package payload

// Alert is the `alert` dictionary nested inside `aps`. Setting Title/Body
// (and friends) gives a visible banner; a bare string on APS.Alert does the
// same thing with no other options.
//
// https://developer.apple.com/documentation/usernotifications/generating_a_remote_notification
type Alert struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body,omitempty"`

	// LaunchImage names an image bundled with the app to show while it
	// launches from the notification.
	LaunchImage string `json:"launch-image,omitempty"`

	// ActionLocKey and Action both label the alert's action button;
	// ActionLocKey looks the title up in Localizable.strings, Action sets
	// it directly for alerts with no registered category.
	ActionLocKey string `json:"action-loc-key,omitempty"`
	Action       string `json:"action,omitempty"`

	// LocKey/LocArgs localize Body; TitleLocKey/TitleLocArgs localize
	// Title; SubtitleLocKey/SubtitleLocArgs localize Subtitle. *LocArgs
	// fill the format specifiers named by the matching *LocKey string in
	// the device's Localizable.strings.
	LocKey          string   `json:"loc-key,omitempty"`
	LocArgs         []string `json:"loc-args,omitempty"`
	TitleLocKey     string   `json:"title-loc-key,omitempty"`
	TitleLocArgs    []string `json:"title-loc-args,omitempty"`
	SubtitleLocKey  string   `json:"subtitle-loc-key,omitempty"`
	SubtitleLocArgs []string `json:"subtitle-loc-args,omitempty"`
}
