// Package api defines the JSON types of the local command surface consumed
// by the UI shell.
package api

// TranscribeRequest carries a complete encoded audio clip, base64 encoded.
type TranscribeRequest struct {
	Audio string `json:"audio"`
}

// SaveRequest persists a transcription the user chose to keep.
type SaveRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// SaveResponse returns the id of the newly saved transcription.
type SaveResponse struct {
	ID int64 `json:"id"`
}

// DeleteResponse reports whether a row was actually removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// FavoriteResponse returns the favorite state after a toggle.
type FavoriteResponse struct {
	IsFavorite bool `json:"isFavorite"`
}

// KeyRequest carries an API key to store or test.
type KeyRequest struct {
	Key string `json:"key"`
}

// SettingRequest updates one settings key.
type SettingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FirstLaunchResponse reports whether the setup flow has run yet.
type FirstLaunchResponse struct {
	FirstLaunch bool `json:"firstLaunch"`
}
