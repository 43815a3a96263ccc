package notification

// PushType is the apns-push-type header value identifying what kind of
// push a notification delivers.
type PushType = string

// Types that can be inferred from a topic suffix alone.
const (
	Voip         PushType = "voip"
	Complication PushType = "complication"
	Fileprovider PushType = "fileprovider"
)

// Types no topic suffix implies. Alert and Background are inferred from the
// payload when no type is set; the rest must be set explicitly.
const (
	Alert        PushType = "alert"
	Background   PushType = "background"
	Controls     PushType = "controls"
	Liveactivity PushType = "liveactivity"
	Location     PushType = "location"
	Mdm          PushType = "mdm"
	Pushtotalk   PushType = "pushtotalk"
	Widgets      PushType = "widgets"
)

// Valid is the closed set of push types APNs documents.
var Valid = map[PushType]bool{
	Alert:        true,
	Background:   true,
	Complication: true,
	Controls:     true,
	Fileprovider: true,
	Liveactivity: true,
	Location:     true,
	Mdm:          true,
	Pushtotalk:   true,
	Voip:         true,
	Widgets:      true,
}
