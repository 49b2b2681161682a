package ring

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Session is returned by Authenticate.
type Session struct {
	Profile Profile `json:"profile"`
}

// Profile describes the authenticated account.
type Profile struct {
	ID                   int64           `json:"id"`
	Email                string          `json:"email"`
	FirstName            string          `json:"first_name"`
	LastName             string          `json:"last_name"`
	PhoneNumber          string          `json:"phone_number"`
	AuthenticationToken  string          `json:"authentication_token"`
	HardwareID           string          `json:"hardware_id"`
	AppBrand             string          `json:"app_brand"`
	Country              string          `json:"country"`
	Status               string          `json:"status"`
	UserFlow             string          `json:"user_flow"`
	ExplorerProgramTerms *string         `json:"explorer_program_terms"`
	CreatedAt            *time.Time      `json:"created_at,omitempty"`
	Features             SessionFeatures `json:"features"`
}

// SessionFeatures holds the account feature flags.
type SessionFeatures struct {
	RemoteLoggingFormatStoring    bool `json:"remote_logging_format_storing"`
	RemoteLoggingLevel            int  `json:"remote_logging_level"`
	SubscriptionsEnabled          bool `json:"subscriptions_enabled"`
	StickupcamSetupEnabled        bool `json:"stickupcam_setup_enabled"`
	VodEnabled                    bool `json:"vod_enabled"`
	RingplusEnabled               bool `json:"ringplus_enabled"`
	LpdEnabled                    bool `json:"lpd_enabled"`
	ReactiveSnoozingEnabled       bool `json:"reactive_snoozing_enabled"`
	ProactiveSnoozingEnabled      bool `json:"proactive_snoozing_enabled"`
	OwnerProactiveSnoozingEnabled bool `json:"owner_proactive_snoozing_enabled"`
	LiveViewSettingsEnabled       bool `json:"live_view_settings_enabled"`
	DeleteAllSettingsEnabled      bool `json:"delete_all_settings_enabled"`
	PowerCableEnabled             bool `json:"power_cable_enabled"`
	DeviceHealthAlertsEnabled     bool `json:"device_health_alerts_enabled"`
	ChimeProEnabled               bool `json:"chime_pro_enabled"`
	MultipleCallsEnabled          bool `json:"multiple_calls_enabled"`
	UjetEnabled                   bool `json:"ujet_enabled"`
	MultipleDeleteEnabled         bool `json:"multiple_delete_enabled"`
	DeleteAllEnabled              bool `json:"delete_all_enabled"`
	LpdMotionAnnouncementEnabled  bool `json:"lpd_motion_announcement_enabled"`
	StarredEventsEnabled          bool `json:"starred_events_enabled"`
	ChimeDndEnabled               bool `json:"chime_dnd_enabled"`
	VideoSearchEnabled            bool `json:"video_search_enabled"`
	FloodlightCamEnabled          bool `json:"floodlight_cam_enabled"`
	RingCamBatteryEnabled         bool `json:"ring_cam_battery_enabled"`
	EliteCamEnabled               bool `json:"elite_cam_enabled"`
	DoorbellV2Enabled             bool `json:"doorbell_v2_enabled"`
	MotionSnoozingEnabled         bool `json:"motion_snoozing_enabled"`
}

// Devices is the response of the device listing endpoint.
type Devices struct {
	Doorbots           []Doorbot `json:"doorbots"`
	AuthorizedDoorbots []Doorbot `json:"authorized_doorbots"`
	Chimes             []Chime   `json:"chimes"`
	StickupCams        []Doorbot `json:"stickup_cams"`
}

// DeviceOwner identifies the account owning a device.
type DeviceOwner struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DeviceAlerts carries device health alerts.
type DeviceAlerts struct {
	Connection string `json:"connection"`
}

// Doorbot is a doorbell-class device. Stickup cams share the same shape.
type Doorbot struct {
	ID                 int64           `json:"id"`
	Description        string          `json:"description"`
	DeviceID           string          `json:"device_id"`
	TimeZone           string          `json:"time_zone"`
	Subscribed         bool            `json:"subscribed"`
	SubscribedMotions  bool            `json:"subscribed_motions"`
	BatteryLife        BatteryLife     `json:"battery_life"`
	ExternalConnection bool            `json:"external_connection"`
	FirmwareVersion    string          `json:"firmware_version"`
	Kind               string          `json:"kind"`
	Latitude           float64         `json:"latitude"`
	Longitude          float64         `json:"longitude"`
	Address            string          `json:"address"`
	Owned              bool            `json:"owned"`
	Owner              *DeviceOwner    `json:"owner,omitempty"`
	Alerts             DeviceAlerts    `json:"alerts"`
	Features           DoorbotFeatures `json:"features"`
	MotionSnooze       *MotionSnooze   `json:"motion_snooze"`
}

// DoorbotFeatures holds per-doorbot feature flags.
type DoorbotFeatures struct {
	MotionsEnabled          bool `json:"motions_enabled"`
	ShowRecordings          bool `json:"show_recordings"`
	AdvancedMotionEnabled   bool `json:"advanced_motion_enabled"`
	PeopleOnlyEnabled       bool `json:"people_only_enabled"`
	ShadowCorrectionEnabled bool `json:"shadow_correction_enabled"`
	MotionMessageEnabled    bool `json:"motion_message_enabled"`
	NightVisionEnabled      bool `json:"night_vision_enabled"`
}

// MotionSnooze is set while motion alerts are snoozed.
type MotionSnooze struct {
	Scheduled bool `json:"scheduled"`
}

// Chime is a companion notification device.
type Chime struct {
	ID              int64         `json:"id"`
	Description     string        `json:"description"`
	DeviceID        string        `json:"device_id"`
	TimeZone        string        `json:"time_zone"`
	FirmwareVersion string        `json:"firmware_version"`
	Kind            string        `json:"kind"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Address         string        `json:"address"`
	Owned           bool          `json:"owned"`
	Owner           *DeviceOwner  `json:"owner,omitempty"`
	Alerts          DeviceAlerts  `json:"alerts"`
	Settings        ChimeSettings `json:"settings"`
	Features        ChimeFeatures `json:"features"`
}

// ChimeSettings holds the chime's volume and tones.
type ChimeSettings struct {
	Volume            int    `json:"volume"`
	DingAudioUserID   string `json:"ding_audio_user_id"`
	DingAudioID       string `json:"ding_audio_id"`
	MotionAudioUserID string `json:"motion_audio_user_id"`
	MotionAudioID     string `json:"motion_audio_id"`
}

// ChimeFeatures holds chime feature flags.
type ChimeFeatures struct {
	RingtonesEnabled bool `json:"ringtones_enabled"`
}

// Event kinds reported in the doorbot history.
const (
	KindDing     = "ding"
	KindMotion   = "motion"
	KindOnDemand = "on_demand"
)

// Recording statuses.
const (
	RecordingReady = "ready"
)

// DoorbotHistoryEvent is one ding, motion or live-view event.
type DoorbotHistoryEvent struct {
	ID          int64                         `json:"id"`
	CreatedAt   time.Time                     `json:"created_at"`
	Answered    bool                          `json:"answered"`
	Kind        string                        `json:"kind"`
	Favorite    bool                          `json:"favorite"`
	SnapshotURL string                        `json:"snapshot_url"`
	Recording   *DoorbotHistoryEventRecording `json:"recording,omitempty"`
	Doorbot     HistoryDoorbot                `json:"doorbot"`
}

// DingID returns the event id in the form used by the recording endpoint.
func (e DoorbotHistoryEvent) DingID() string {
	return strconv.FormatInt(e.ID, 10)
}

// HasRecording reports whether a finished recording is available.
func (e DoorbotHistoryEvent) HasRecording() bool {
	return e.Recording != nil && e.Recording.Status == RecordingReady
}

// DoorbotHistoryEventRecording references the event's video.
type DoorbotHistoryEventRecording struct {
	Status string `json:"status"`
}

// HistoryDoorbot identifies the device that produced an event.
type HistoryDoorbot struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

// BatteryLife is reported by the API either as a number or as a numeric
// string, and is null for wired devices.
type BatteryLife string

// UnmarshalJSON accepts a JSON string, number or null.
func (b *BatteryLife) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = BatteryLife(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = BatteryLife(n.String())
	return nil
}

// Percent returns the battery level, or false when unknown.
func (b BatteryLife) Percent() (int, bool) {
	if b == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
