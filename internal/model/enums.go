package model

// Asset types — one matrix column per type
type AssetType string

const (
	AssetTypeVideo AssetType = "video"
	AssetTypeImage AssetType = "image"
	AssetTypeText  AssetType = "text"
	AssetTypeAudio AssetType = "audio"
)

// AllAssetTypes lists the matrix columns in display order.
var AllAssetTypes = []AssetType{
	AssetTypeVideo, AssetTypeImage, AssetTypeText, AssetTypeAudio,
}

// VisualAssetTypes are the types that satisfy the baseline "at least one
// visual per row" requirement.
var VisualAssetTypes = []AssetType{AssetTypeVideo, AssetTypeImage}

func IsValidAssetType(t AssetType) bool {
	for _, at := range AllAssetTypes {
		if at == t {
			return true
		}
	}
	return false
}

// Platforms
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTiktok    Platform = "tiktok"
	PlatformYoutube   Platform = "youtube"
	PlatformDisplay   Platform = "display"
)

var ValidPlatforms = []Platform{
	PlatformFacebook, PlatformInstagram, PlatformTiktok,
	PlatformYoutube, PlatformDisplay,
}

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses by finality; used by the monotonicity guard.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	}
	return -1
}

// AtLeastAsFinalAs reports whether s is at the same stage as other or later.
// A poll reporting processing must never overwrite a persisted terminal state.
func (s JobStatus) AtLeastAsFinalAs(other JobStatus) bool {
	return s.rank() >= other.rank()
}

// Auto-fill strategies
type FillStrategy string

const (
	FillStrategyRandom FillStrategy = "random"
	FillStrategySmart  FillStrategy = "smart"
)

// Validation issue codes
const (
	IssueMissingRequiredAsset = "missing_required_asset"
	IssueDuplicateCombination = "duplicate_combination"
)
